package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/innovation-cell/research-portal-api/internal/dto"
	"github.com/innovation-cell/research-portal-api/internal/models"
	"github.com/innovation-cell/research-portal-api/internal/repository"
	"github.com/innovation-cell/research-portal-api/internal/workflow"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
)

type reviewSubmissionStore interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	ClaimReviewer(ctx context.Context, id string, reviewer models.UserRef) error
	AssignReviewer(ctx context.Context, id string, reviewer models.UserRef) error
	UpdateReview(ctx context.Context, params repository.UpdateReviewParams) error
}

type reviewUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ReviewService enforces the reviewer-axis state machine: who may decide,
// which transitions are legal, and the lifecycle side effects of each
// decision.
type ReviewService struct {
	submissions reviewSubmissionStore
	users       reviewUserStore
	audit       auditLogger
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewReviewService constructs the service. Metrics may be nil.
func NewReviewService(submissions reviewSubmissionStore, users reviewUserStore, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{submissions: submissions, users: users, audit: audit, metrics: metrics, logger: logger}
}

// AssignReviewer sets or replaces a submission's reviewer. Admins may assign
// anyone eligible; faculty may only assign themselves. Reassignment always
// resets the review state so no stale decision survives.
func (s *ReviewService) AssignReviewer(ctx context.Context, submissionID, reviewerID string, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleFaculty:
		if actor.UserID != reviewerID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "faculty may only assign themselves as reviewer")
		}
	default:
		return nil, appErrors.ErrForbidden
	}

	reviewer, err := s.users.FindByID(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reviewer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer")
	}
	if !reviewer.Role.CanReview() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reviewer must have FACULTY or ADMIN role")
	}

	if err := s.submissions.AssignReviewer(ctx, submissionID, models.UserRef{
		ID:       reviewer.ID,
		FullName: reviewer.FullName,
		Email:    reviewer.Email,
		Role:     reviewer.Role,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign reviewer")
	}

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionReviewerAssign,
		Resource:   "submission",
		ResourceID: &submissionID,
		NewValues:  []byte(fmt.Sprintf(`{"reviewer_id":%q}`, reviewerID)),
	})

	return s.reload(ctx, submissionID)
}

// Decide records a reviewer decision. When no reviewer is assigned yet the
// acting faculty or admin claims the submission atomically; exactly one of
// two concurrent claimants wins and the loser is told they are not the
// assigned reviewer.
func (s *ReviewService) Decide(ctx context.Context, submissionID string, req dto.DecisionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.CanReview() {
		return nil, appErrors.ErrForbidden
	}

	event, err := decisionEvent(req.Decision)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if (event == workflow.EventAcceptForPublish || event == workflow.EventRejectForPublish) && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "publish-gate decisions require admin role")
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	expectReviewerID := ""
	if submission.HasReviewer() {
		expectReviewerID = *submission.ReviewerID
		if actor.UserID != expectReviewerID && actor.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not the assigned reviewer")
		}
	} else {
		// First decision claims the review. The conditional write keyed on
		// reviewer_id IS NULL makes the claim race-safe.
		if err := s.submissions.ClaimReviewer(ctx, submissionID, models.UserRef{
			ID:       actor.UserID,
			FullName: actor.FullName,
			Email:    actor.Email,
			Role:     actor.Role,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "not the assigned reviewer")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim review")
		}
		expectReviewerID = actor.UserID
		submission.ReviewerStatus = models.ReviewPending
	}

	next, err := workflow.Next(submission.ReviewerStatus, event)
	if err != nil {
		var te *workflow.TransitionError
		if errors.As(err, &te) {
			return nil, appErrors.Clone(appErrors.ErrConflict, te.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve transition")
	}

	params := repository.UpdateReviewParams{
		ID:               submissionID,
		ExpectReviewerID: expectReviewerID,
		ReviewerStatus:   next,
		ReviewerComments: optionalString(req.Comments),
		ReviewedAt:       time.Now().UTC(),
	}
	if status, ok := workflow.StatusEffect(submission.Kind, event); ok {
		params.Status = &status
	}

	if err := s.submissions.UpdateReview(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	s.metrics.RecordReviewDecision(req.Decision)

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionReviewDecision,
		Resource:   "submission",
		ResourceID: &submissionID,
		NewValues:  []byte(fmt.Sprintf(`{"decision":%q,"reviewer_status":%q}`, req.Decision, next)),
	})

	return s.reload(ctx, submissionID)
}

func (s *ReviewService) reload(ctx context.Context, submissionID string) (*models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload submission")
	}
	return submission, nil
}

func decisionEvent(decision string) (workflow.Event, error) {
	switch decision {
	case dto.DecisionApprove:
		return workflow.EventApprove, nil
	case dto.DecisionReject:
		return workflow.EventReject, nil
	case dto.DecisionAcceptForPublish:
		return workflow.EventAcceptForPublish, nil
	case dto.DecisionRejectForPublish:
		return workflow.EventRejectForPublish, nil
	}
	return "", fmt.Errorf("unsupported decision %q", decision)
}
