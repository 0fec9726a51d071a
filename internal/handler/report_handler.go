package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/innovation-cell/research-portal-api/internal/models"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
	"github.com/innovation-cell/research-portal-api/pkg/response"
)

type reportService interface {
	PublishedWorks(ctx context.Context, kind models.SubmissionKind, format string, actor *models.JWTClaims) ([]byte, string, error)
}

// ReportHandler serves admin report downloads.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// PublishedWorks godoc
// @Summary Download the published works report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param kind query string true "PAPER or PROJECT"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reports/published [get]
func (h *ReportHandler) PublishedWorks(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	kind := models.SubmissionKind(strings.ToUpper(c.DefaultQuery("kind", string(models.KindPaper))))
	format := strings.ToLower(c.DefaultQuery("format", "csv"))

	payload, contentType, err := h.service.PublishedWorks(c.Request.Context(), kind, format, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("published-%s-%s.%s",
		strings.ToLower(string(kind)), time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(200, contentType, payload)
}
