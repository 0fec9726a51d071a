package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/innovation-cell/research-portal-api/internal/models"
	"github.com/innovation-cell/research-portal-api/internal/repository"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
)

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

// submissionStoreStub mimics the conditional-write semantics of the real
// repository so service tests exercise the same race guards.
type submissionStoreStub struct {
	submissions map[string]*models.Submission
	authors     map[string][]string
	nextID      int
}

func newSubmissionStoreStub() *submissionStoreStub {
	return &submissionStoreStub{
		submissions: make(map[string]*models.Submission),
		authors:     make(map[string][]string),
	}
}

func (s *submissionStoreStub) add(sub *models.Submission, authorIDs ...string) {
	s.submissions[sub.ID] = sub
	s.authors[sub.ID] = authorIDs
}

func (s *submissionStoreStub) Create(ctx context.Context, submission *models.Submission, authorIDs, advisorIDs []string) error {
	if submission.ID == "" {
		s.nextID++
		submission.ID = fmt.Sprintf("sub-%d", s.nextID)
	}
	if submission.Status == "" {
		submission.Status = models.StatusUpload
	}
	if submission.ReviewerStatus == "" {
		submission.ReviewerStatus = models.ReviewPending
	}
	s.add(submission, authorIDs...)
	return nil
}

func (s *submissionStoreStub) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	sub, ok := s.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *sub
	return &clone, nil
}

func (s *submissionStoreStub) IsAuthor(ctx context.Context, submissionID, userID string) (bool, error) {
	for _, id := range s.authors[submissionID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *submissionStoreStub) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	var result []models.Submission
	for _, sub := range s.submissions {
		if filter.Kind != "" && sub.Kind != filter.Kind {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, sub.Status) {
			continue
		}
		if filter.ReviewerID != "" && (sub.ReviewerID == nil || *sub.ReviewerID != filter.ReviewerID) {
			continue
		}
		if filter.AuthorID != "" {
			isAuthor, _ := s.IsAuthor(ctx, sub.ID, filter.AuthorID)
			if !isAuthor {
				continue
			}
		}
		result = append(result, *sub)
	}
	return result, len(result), nil
}

func (s *submissionStoreStub) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if _, ok := s.submissions[id]; ok {
			delete(s.submissions, id)
			delete(s.authors, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *submissionStoreStub) ClaimReviewer(ctx context.Context, id string, reviewer models.UserRef) error {
	sub, ok := s.submissions[id]
	if !ok || sub.ReviewerID != nil {
		return sql.ErrNoRows
	}
	s.setReviewer(sub, reviewer)
	return nil
}

func (s *submissionStoreStub) AssignReviewer(ctx context.Context, id string, reviewer models.UserRef) error {
	sub, ok := s.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.setReviewer(sub, reviewer)
	return nil
}

func (s *submissionStoreStub) setReviewer(sub *models.Submission, reviewer models.UserRef) {
	id, name, email := reviewer.ID, reviewer.FullName, reviewer.Email
	sub.ReviewerID = &id
	sub.ReviewerName = &name
	sub.ReviewerEmail = &email
	sub.ReviewerStatus = models.ReviewPending
	sub.ReviewerComments = nil
	sub.ReviewedAt = nil
}

func (s *submissionStoreStub) UpdateReview(ctx context.Context, params repository.UpdateReviewParams) error {
	sub, ok := s.submissions[params.ID]
	if !ok || sub.ReviewerID == nil || *sub.ReviewerID != params.ExpectReviewerID {
		return sql.ErrNoRows
	}
	sub.ReviewerStatus = params.ReviewerStatus
	if params.Status != nil {
		sub.Status = *params.Status
	}
	sub.ReviewerComments = params.ReviewerComments
	reviewedAt := params.ReviewedAt
	sub.ReviewedAt = &reviewedAt
	return nil
}

func (s *submissionStoreStub) RequestUpdates(ctx context.Context, params repository.RequestUpdatesParams) error {
	sub, ok := s.submissions[params.ID]
	if !ok || sub.ReviewerID == nil || *sub.ReviewerID != params.ExpectReviewerID {
		return sql.ErrNoRows
	}
	sub.ReviewerStatus = models.ReviewNeedsUpdates
	sub.NeedsUpdate = true
	message := params.Message
	sub.UpdateRequest = &message
	sub.UpdateDeadline = params.Deadline
	sub.StudentUpdateComments = nil
	sub.StudentUpdatedAt = nil
	return nil
}

func (s *submissionStoreStub) ApplyRevision(ctx context.Context, id, comments string, respondedAt time.Time, fields repository.RevisionFields) error {
	sub, ok := s.submissions[id]
	if !ok || !sub.NeedsUpdate {
		return sql.ErrNoRows
	}
	sub.ReviewerStatus = models.ReviewPending
	sub.NeedsUpdate = false
	sub.StudentUpdateComments = &comments
	sub.StudentUpdatedAt = &respondedAt
	if fields.DocumentLink != nil {
		sub.DocumentLink = *fields.DocumentLink
	}
	if fields.ImageLink != nil {
		sub.ImageLink = *fields.ImageLink
	}
	if fields.Abstract != nil {
		sub.Abstract = *fields.Abstract
	}
	return nil
}

func (s *submissionStoreStub) SetStatus(ctx context.Context, id string, to models.SubmissionStatus, from ...models.SubmissionStatus) error {
	sub, ok := s.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	if len(from) > 0 && !containsStatus(from, sub.Status) {
		return sql.ErrNoRows
	}
	sub.Status = to
	return nil
}

func (s *submissionStoreStub) PublishAll(ctx context.Context, ids []string) ([]string, error) {
	var failing []string
	for _, id := range ids {
		sub, ok := s.submissions[id]
		if !ok {
			failing = append(failing, id)
			continue
		}
		if sub.Status == models.StatusPublish {
			continue
		}
		if sub.ReviewerStatus != models.ReviewAccepted && sub.ReviewerStatus != models.ReviewAcceptedForPublish {
			failing = append(failing, id)
		}
	}
	if len(failing) > 0 {
		return failing, nil
	}
	for _, id := range ids {
		s.submissions[id].Status = models.StatusPublish
	}
	return nil, nil
}

func containsStatus(haystack []models.SubmissionStatus, needle models.SubmissionStatus) bool {
	for _, status := range haystack {
		if status == needle {
			return true
		}
	}
	return false
}

type roundStoreStub struct {
	rounds map[string][]models.RevisionRound
}

func newRoundStoreStub() *roundStoreStub {
	return &roundStoreStub{rounds: make(map[string][]models.RevisionRound)}
}

func (s *roundStoreStub) AppendRound(ctx context.Context, round *models.RevisionRound) error {
	round.Sequence = len(s.rounds[round.SubmissionID]) + 1
	s.rounds[round.SubmissionID] = append(s.rounds[round.SubmissionID], *round)
	return nil
}

func (s *roundStoreStub) CompleteOpenRound(ctx context.Context, submissionID, comments string, respondedAt time.Time) error {
	rounds := s.rounds[submissionID]
	for i := range rounds {
		if rounds[i].RespondedAt == nil {
			rounds[i].ResponseComments = &comments
			rounds[i].RespondedAt = &respondedAt
			s.rounds[submissionID] = rounds
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *roundStoreStub) ListRounds(ctx context.Context, submissionID string) ([]models.RevisionRound, error) {
	return s.rounds[submissionID], nil
}

type userStoreStub struct {
	users map[string]*models.User
}

func newUserStoreStub(users ...*models.User) *userStoreStub {
	stub := &userStoreStub{users: make(map[string]*models.User)}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return stub
}

func (s *userStoreStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (s *userStoreStub) FindManyByIDs(ctx context.Context, ids []string) ([]models.UserRef, error) {
	var refs []models.UserRef
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			refs = append(refs, models.UserRef{ID: user.ID, FullName: user.FullName, Email: user.Email, Role: user.Role})
		}
	}
	return refs, nil
}

type cacheStub struct {
	data map[string][]byte
	hits int
	sets int
}

func newCacheStub() *cacheStub {
	return &cacheStub{data: make(map[string][]byte)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	return nil
}

func (c *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.data = make(map[string][]byte)
	return nil
}

func adminClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleAdmin, Email: id + "@uni.edu", FullName: "Admin " + id}
}

func facultyClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleFaculty, Email: id + "@uni.edu", FullName: "Faculty " + id}
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, Email: id + "@uni.edu", FullName: "Student " + id}
}
