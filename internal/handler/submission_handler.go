package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/innovation-cell/research-portal-api/internal/dto"
	"github.com/innovation-cell/research-portal-api/internal/middleware"
	"github.com/innovation-cell/research-portal-api/internal/models"
	"github.com/innovation-cell/research-portal-api/internal/service"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
	"github.com/innovation-cell/research-portal-api/pkg/response"
)

type submissionService interface {
	Create(ctx context.Context, kind models.SubmissionKind, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error)
	List(ctx context.Context, kind models.SubmissionKind, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, *models.Pagination, error)
	AssignedToReviewer(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, *models.Pagination, error)
	ListPublished(ctx context.Context, page, pageSize int) (*service.PublishedPage, error)
	DeleteMany(ctx context.Context, req dto.DeleteSubmissionsRequest, actor *models.JWTClaims) (int64, error)
}

// SubmissionHandler exposes REST endpoints for papers and projects.
type SubmissionHandler struct {
	service  submissionService
	validate *validator.Validate
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(svc submissionService, validate *validator.Validate) *SubmissionHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionHandler{service: svc, validate: validate}
}

// Create godoc
// @Summary Submit a paper or project
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /papers [post]
func (h *SubmissionHandler) Create(kind models.SubmissionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		var req dto.CreateSubmissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
			return
		}
		if err := h.validate.Struct(req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
			return
		}
		submission, err := h.service.Create(c.Request.Context(), kind, req, claims)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusCreated, submission, nil)
	}
}

// List godoc
// @Summary List submissions of one kind
// @Tags Submissions
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param reviewer_status query string false "Comma separated reviewer statuses"
// @Param needs_update query bool false "Filter by outstanding update requests"
// @Param search query string false "Title or abstract search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /papers [get]
func (h *SubmissionHandler) List(kind models.SubmissionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		submissions, pagination, err := h.service.List(c.Request.Context(), kind, parseSubmissionQuery(c), claims)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, submissions, pagination)
	}
}

// Get godoc
// @Summary Get submission detail
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// AssignedQueue godoc
// @Summary List submissions assigned to the calling reviewer
// @Tags Review
// @Produce json
// @Param reviewer_status query string false "Comma separated reviewer statuses"
// @Success 200 {object} response.Envelope
// @Router /review/queue [get]
func (h *SubmissionHandler) AssignedQueue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submissions, pagination, err := h.service.AssignedToReviewer(c.Request.Context(), parseSubmissionQuery(c), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, pagination)
}

// Published godoc
// @Summary Public catalogue of published papers
// @Tags Public
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /papers/published [get]
func (h *SubmissionHandler) Published(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.service.ListPublished(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	response.JSON(c, http.StatusOK, result.Items, &result.Pagination, middleware.ExtractMeta(c))
}

// DeleteMany godoc
// @Summary Delete submissions
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.DeleteSubmissionsRequest true "IDs to delete"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/submissions [delete]
func (h *SubmissionHandler) DeleteMany(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DeleteSubmissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid delete payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delete payload"))
		return
	}
	deleted, err := h.service.DeleteMany(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}

func parseSubmissionQuery(c *gin.Context) dto.SubmissionQuery {
	query := dto.SubmissionQuery{
		Search: strings.TrimSpace(c.Query("search")),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			query.Status = append(query.Status, models.SubmissionStatus(part))
		}
	}
	if raw := c.Query("reviewer_status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			query.ReviewerStatus = append(query.ReviewerStatus, models.ReviewerStatus(part))
		}
	}
	if raw := c.Query("needs_update"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			query.NeedsUpdate = &parsed
		}
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return query
}
