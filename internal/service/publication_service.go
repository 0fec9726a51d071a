package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/innovation-cell/research-portal-api/internal/dto"
	"github.com/innovation-cell/research-portal-api/internal/models"
	"github.com/innovation-cell/research-portal-api/internal/workflow"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
)

type publicationSubmissionStore interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	SetStatus(ctx context.Context, id string, to models.SubmissionStatus, from ...models.SubmissionStatus) error
	PublishAll(ctx context.Context, ids []string) ([]string, error)
}

type catalogueInvalidator interface {
	InvalidateCatalogue(ctx context.Context) error
}

// PublicationService handles the admin-only lifecycle actions that take a
// reviewed submission to its final state, one at a time or in bulk.
type PublicationService struct {
	submissions publicationSubmissionStore
	catalogue   catalogueInvalidator
	audit       auditLogger
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewPublicationService constructs the service. The catalogue invalidator and
// metrics are optional; pass nil when those features are disabled.
func NewPublicationService(submissions publicationSubmissionStore, catalogue catalogueInvalidator, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *PublicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicationService{submissions: submissions, catalogue: catalogue, audit: audit, metrics: metrics, logger: logger}
}

// AdminAction applies an accept, reject, publish, or complete action to a
// single submission. Publishing requires a reviewer-approved submission and
// is idempotent for already-published ones; completing requires an ongoing
// project.
func (s *PublicationService) AdminAction(ctx context.Context, submissionID string, req dto.AdminActionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}

	action := workflow.AdminAction(req.Action)
	if !action.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported action %q", req.Action))
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	target, err := workflow.AdminStatus(submission.Kind, action)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if action == workflow.AdminPublish {
		// Publish goes through the same locked transaction as the bulk
		// path so the reviewer-approval check and the status write
		// cannot be split by a concurrent decision.
		failing, err := s.submissions.PublishAll(ctx, []string{submissionID})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish submission")
		}
		if len(failing) > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission must be reviewer-approved before publishing")
		}
	} else if action == workflow.AdminComplete {
		if err := s.submissions.SetStatus(ctx, submissionID, target, models.StatusOngoing); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "project is not ongoing")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
		}
	} else if err := s.submissions.SetStatus(ctx, submissionID, target); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}

	s.invalidateCatalogue(ctx)
	if action == workflow.AdminPublish {
		s.metrics.RecordPublished(1)
	}

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionAdminDecision,
		Resource:   "submission",
		ResourceID: &submissionID,
		NewValues:  []byte(fmt.Sprintf(`{"action":%q,"status":%q}`, req.Action, target)),
	})

	return s.submissions.GetByID(ctx, submissionID)
}

// BulkPublish publishes every listed submission or none of them. When any
// submission is missing or not reviewer-approved the whole batch is rolled
// back and the failing ids are returned in the error details.
func (s *PublicationService) BulkPublish(ctx context.Context, req dto.BulkPublishRequest, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return appErrors.ErrForbidden
	}
	if len(req.IDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "ids must not be empty")
	}

	failing, err := s.submissions.PublishAll(ctx, req.IDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish submissions")
	}
	if len(failing) > 0 {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, "some submissions are not eligible for publishing"),
			map[string][]string{"failing_ids": failing},
		)
	}

	s.invalidateCatalogue(ctx)
	s.metrics.RecordPublished(len(req.IDs))

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:    &actor.UserID,
		Action:    models.AuditActionBulkPublish,
		Resource:  "submission",
		NewValues: []byte(fmt.Sprintf(`{"ids":%q}`, strings.Join(req.IDs, ","))),
	})

	return nil
}

func (s *PublicationService) invalidateCatalogue(ctx context.Context) {
	if s.catalogue == nil {
		return
	}
	if err := s.catalogue.InvalidateCatalogue(ctx); err != nil {
		s.logger.Warn("failed to invalidate published catalogue cache", zap.Error(err))
	}
}
