package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/innovation-cell/research-portal-api/internal/dto"
	"github.com/innovation-cell/research-portal-api/internal/models"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
	"github.com/innovation-cell/research-portal-api/pkg/response"
)

type reviewService interface {
	AssignReviewer(ctx context.Context, submissionID, reviewerID string, actor *models.JWTClaims) (*models.Submission, error)
	Decide(ctx context.Context, submissionID string, req dto.DecisionRequest, actor *models.JWTClaims) (*models.Submission, error)
}

type revisionService interface {
	RequestUpdates(ctx context.Context, submissionID string, req dto.RequestUpdatesRequest, actor *models.JWTClaims) (*models.Submission, error)
	SubmitRevision(ctx context.Context, submissionID string, req dto.SubmitRevisionRequest, actor *models.JWTClaims) (*models.Submission, error)
	History(ctx context.Context, submissionID string, actor *models.JWTClaims) ([]models.RevisionRound, error)
}

type publicationService interface {
	AdminAction(ctx context.Context, submissionID string, req dto.AdminActionRequest, actor *models.JWTClaims) (*models.Submission, error)
	BulkPublish(ctx context.Context, req dto.BulkPublishRequest, actor *models.JWTClaims) error
}

// ReviewHandler exposes the review workflow endpoints.
type ReviewHandler struct {
	reviews     reviewService
	revisions   revisionService
	publication publicationService
	validate    *validator.Validate
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(reviews reviewService, revisions revisionService, publication publicationService, validate *validator.Validate) *ReviewHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewHandler{reviews: reviews, revisions: revisions, publication: publication, validate: validate}
}

// AssignReviewer godoc
// @Summary Assign a reviewer to a submission
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.AssignReviewerRequest true "Reviewer assignment"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /review/{id}/assign [post]
func (h *ReviewHandler) AssignReviewer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AssignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	submission, err := h.reviews.AssignReviewer(c.Request.Context(), c.Param("id"), req.ReviewerID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Decide godoc
// @Summary Record a reviewer decision
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /review/{id}/decision [post]
func (h *ReviewHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	submission, err := h.reviews.Decide(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// RequestUpdates godoc
// @Summary Request changes from the authors
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.RequestUpdatesRequest true "Update request"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /review/{id}/request-updates [post]
func (h *ReviewHandler) RequestUpdates(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RequestUpdatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update request payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update request payload"))
		return
	}
	submission, err := h.revisions.RequestUpdates(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// SubmitRevision godoc
// @Summary Submit a revision in response to an update request
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.SubmitRevisionRequest true "Revision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions/{id}/revision [post]
func (h *ReviewHandler) SubmitRevision(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitRevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid revision payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid revision payload"))
		return
	}
	submission, err := h.revisions.SubmitRevision(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// RevisionHistory godoc
// @Summary Revision round history for a submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/revisions [get]
func (h *ReviewHandler) RevisionHistory(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rounds, err := h.revisions.History(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rounds, nil)
}

// AdminAction godoc
// @Summary Apply an admin lifecycle action
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.AdminActionRequest true "Action payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/submissions/{id}/action [post]
func (h *ReviewHandler) AdminAction(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AdminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid action payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid action payload"))
		return
	}
	submission, err := h.publication.AdminAction(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// BulkPublish godoc
// @Summary Publish a set of submissions atomically
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.BulkPublishRequest true "Submission IDs"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/submissions/publish [post]
func (h *ReviewHandler) BulkPublish(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BulkPublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid publish payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid publish payload"))
		return
	}
	if err := h.publication.BulkPublish(c.Request.Context(), req, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
