package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/innovation-cell/research-portal-api/pkg/response"
)

func TestResponseMetaReachesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/catalogue", func(c *gin.Context) {
		SetCacheHit(c, true)
		response.JSON(c, http.StatusOK, []string{"item"}, nil, ExtractMeta(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, true, envelope.Meta["cache_hit"])
	require.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestResponseMetaCacheMiss(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/catalogue", func(c *gin.Context) {
		SetCacheHit(c, false)
		response.JSON(c, http.StatusOK, nil, nil, ExtractMeta(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalogue", nil))

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestExtractMetaWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.Nil(t, ExtractMeta(c))
}
