package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/innovation-cell/research-portal-api/internal/dto"
	"github.com/innovation-cell/research-portal-api/internal/models"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, submission *models.Submission, authorIDs, advisorIDs []string) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	IsAuthor(ctx context.Context, submissionID, userID string) (bool, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

type submissionUserStore interface {
	FindManyByIDs(ctx context.Context, ids []string) ([]models.UserRef, error)
}

type catalogueCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const cataloguePrefix = "catalogue:published"

// SubmissionService covers submission creation, role-scoped reads, the public
// published catalogue, and admin bulk deletion.
type SubmissionService struct {
	submissions submissionStore
	users       submissionUserStore
	cache       catalogueCache
	cacheTTL    time.Duration
	audit       auditLogger
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewSubmissionService constructs the service. Cache and metrics are
// optional; pass nil to serve the published catalogue straight from the
// database.
func NewSubmissionService(submissions submissionStore, users submissionUserStore, cache catalogueCache, cacheTTL time.Duration, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		submissions: submissions,
		users:       users,
		cache:       cache,
		cacheTTL:    cacheTTL,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
	}
}

// PublishedPage is the cached payload of one published catalogue page.
// Cached marks pages served from the cache and is never stored itself.
type PublishedPage struct {
	Items      []models.Submission `json:"items"`
	Pagination models.Pagination   `json:"pagination"`
	Cached     bool                `json:"-"`
}

// Create submits a new paper or project. The creator must appear among the
// listed authors unless they are faculty or admin submitting on behalf of
// students. All participant ids must resolve to active users.
func (s *SubmissionService) Create(ctx context.Context, kind models.SubmissionKind, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported submission kind %q", kind))
	}
	if actor.Role == models.RoleStudent && !containsID(req.AuthorIDs, actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "students must include themselves among the authors")
	}

	participantIDs := uniqueIDs(append(append([]string{}, req.AuthorIDs...), req.AdvisorIDs...))
	users, err := s.users.FindManyByIDs(ctx, participantIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve participants")
	}
	known := make(map[string]models.UserRef, len(users))
	for _, u := range users {
		known[u.ID] = u
	}
	var missing []string
	for _, id := range participantIDs {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "unknown participant ids"),
			map[string][]string{"missing_ids": missing},
		)
	}
	for _, id := range req.AdvisorIDs {
		if !known[id].Role.CanReview() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "advisors must have FACULTY or ADMIN role")
		}
	}

	submission := &models.Submission{
		Kind:         kind,
		Title:        strings.TrimSpace(req.Title),
		Abstract:     req.Abstract,
		DocumentLink: req.DocumentLink,
		ImageLink:    req.ImageLink,
		CreatedBy:    actor.UserID,
	}
	if err := s.submissions.Create(ctx, submission, uniqueIDs(req.AuthorIDs), uniqueIDs(req.AdvisorIDs)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionSubmissionCreate,
		Resource:   "submission",
		ResourceID: &submission.ID,
		NewValues:  []byte(fmt.Sprintf(`{"kind":%q,"title":%q}`, kind, submission.Title)),
	})

	return s.submissions.GetByID(ctx, submission.ID)
}

// Get returns a submission. Students may only read their own submissions or
// published ones.
func (s *SubmissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if actor.Role == models.RoleStudent && submission.Status != models.StatusPublish {
		isAuthor, err := s.submissions.IsAuthor(ctx, id, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check authorship")
		}
		if !isAuthor && submission.CreatedBy != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	}
	return submission, nil
}

// List returns submissions of one kind, scoped by the caller's role:
// students see only submissions they authored, faculty and admin see all.
func (s *SubmissionService) List(ctx context.Context, kind models.SubmissionKind, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !kind.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported submission kind %q", kind))
	}

	filter := models.SubmissionFilter{
		Kind:           kind,
		Status:         query.Status,
		ReviewerStatus: query.ReviewerStatus,
		NeedsUpdate:    query.NeedsUpdate,
		Search:         query.Search,
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	if actor.Role == models.RoleStudent {
		filter.AuthorID = actor.UserID
	}

	submissions, total, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, buildPagination(filter.Page, filter.PageSize, total), nil
}

// AssignedToReviewer lists submissions on the caller's review queue.
func (s *SubmissionService) AssignedToReviewer(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.CanReview() {
		return nil, nil, appErrors.ErrForbidden
	}

	filter := models.SubmissionFilter{
		ReviewerID:     actor.UserID,
		ReviewerStatus: query.ReviewerStatus,
		Search:         query.Search,
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	submissions, total, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assigned submissions")
	}
	return submissions, buildPagination(filter.Page, filter.PageSize, total), nil
}

// ListPublished serves the public catalogue of published papers, backed by a
// read-through cache when one is configured.
func (s *SubmissionService) ListPublished(ctx context.Context, page, pageSize int) (*PublishedPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	key := fmt.Sprintf("%s:%d:%d", cataloguePrefix, page, pageSize)
	if s.cache != nil {
		var cached PublishedPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			cached.Cached = true
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalogue cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	submissions, total, err := s.submissions.List(ctx, models.SubmissionFilter{
		Kind:     models.KindPaper,
		Status:   []models.SubmissionStatus{models.StatusPublish},
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list published papers")
	}

	result := &PublishedPage{
		Items:      submissions,
		Pagination: *buildPagination(page, pageSize, total),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			s.logger.Warn("catalogue cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

// InvalidateCatalogue drops every cached catalogue page. Called after any
// publication state change.
func (s *SubmissionService) InvalidateCatalogue(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteByPattern(ctx, cataloguePrefix+":*")
}

// DeleteMany removes the listed submissions and their revision history.
// Admin only.
func (s *SubmissionService) DeleteMany(ctx context.Context, req dto.DeleteSubmissionsRequest, actor *models.JWTClaims) (int64, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return 0, appErrors.ErrForbidden
	}

	deleted, err := s.submissions.DeleteMany(ctx, req.IDs)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete submissions")
	}

	s.invalidate(ctx)

	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:    &actor.UserID,
		Action:    models.AuditActionSubmissionDelete,
		Resource:  "submission",
		NewValues: []byte(fmt.Sprintf(`{"ids":%q,"deleted":%d}`, strings.Join(req.IDs, ","), deleted)),
	})

	return deleted, nil
}

func (s *SubmissionService) invalidate(ctx context.Context) {
	if err := s.InvalidateCatalogue(ctx); err != nil {
		s.logger.Warn("failed to invalidate published catalogue cache", zap.Error(err))
	}
}

func buildPagination(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
