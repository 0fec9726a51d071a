package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func corsRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAllowsConfiguredOrigin(t *testing.T) {
	r := corsRouter([]string{"https://portal.uni.edu"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://portal.uni.edu")
	r.ServeHTTP(w, req)

	require.Equal(t, "https://portal.uni.edu", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Request-ID, X-User-ID, X-User-Role", w.Header().Get("Access-Control-Expose-Headers"))
	require.NotContains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestRejectsUnknownOrigin(t *testing.T) {
	r := corsRouter([]string{"https://portal.uni.edu"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)

	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightShortCircuits(t *testing.T) {
	r := corsRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
}
