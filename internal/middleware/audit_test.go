package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/innovation-cell/research-portal-api/internal/models"
)

type auditSinkStub struct {
	entries []*models.AuditLog
}

func (s *auditSinkStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.entries = append(s.entries, log)
	return nil
}

func TestAuditRecordsSuccessfulRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sink := &auditSinkStub{}
	r := gin.New()
	r.GET("/reports/published",
		func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
		},
		Audit(sink, models.AuditActionReportExport, "report"),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/published", nil))
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	require.Equal(t, models.AuditActionReportExport, entry.Action)
	require.Equal(t, "report", entry.Resource)
	require.NotNil(t, entry.UserID)
	require.Equal(t, "adm-1", *entry.UserID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.NewValues, &body))
	require.Equal(t, "/reports/published", body["path"])
	require.Equal(t, http.MethodGet, body["method"])
}

func TestAuditSkipsFailedRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sink := &auditSinkStub{}
	r := gin.New()
	r.GET("/reports/published", Audit(sink, models.AuditActionReportExport, "report"), func(c *gin.Context) {
		c.Status(http.StatusForbidden)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/published", nil))

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, sink.entries)
}
