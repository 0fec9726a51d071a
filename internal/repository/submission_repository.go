package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/innovation-cell/research-portal-api/internal/models"
)

// SubmissionRepository persists research papers and ongoing projects.
// Workflow writes are conditional updates: when the guard predicate does not
// match the current row the method returns sql.ErrNoRows, which services
// surface as a conflict or authorization failure instead of silently losing
// a concurrent update.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, kind, title, abstract, document_link, image_link, status,
	reviewer_status, reviewer_id, reviewer_name, reviewer_email, reviewer_comments, reviewed_at,
	needs_update, update_request, update_deadline, student_update_comments, student_updated_at,
	created_by, created_at, updated_at`

// Create inserts a submission together with its author and advisor links in
// one transaction.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission, authorIDs, advisorIDs []string) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now
	if submission.Status == "" {
		submission.Status = models.StatusUpload
	}
	if submission.ReviewerStatus == "" {
		submission.ReviewerStatus = models.ReviewPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create submission: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO submissions
	(id, kind, title, abstract, document_link, image_link, status, reviewer_status,
	 reviewer_id, reviewer_name, reviewer_email, reviewer_comments, reviewed_at,
	 needs_update, update_request, update_deadline, student_update_comments, student_updated_at,
	 created_by, created_at, updated_at)
	VALUES (:id, :kind, :title, :abstract, :document_link, :image_link, :status, :reviewer_status,
	 :reviewer_id, :reviewer_name, :reviewer_email, :reviewer_comments, :reviewed_at,
	 :needs_update, :update_request, :update_deadline, :student_update_comments, :student_updated_at,
	 :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}

	for _, userID := range authorIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO submission_authors (submission_id, user_id) VALUES ($1, $2)`, submission.ID, userID); err != nil {
			return fmt.Errorf("link author: %w", err)
		}
	}
	for _, userID := range advisorIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO submission_advisors (submission_id, user_id) VALUES ($1, $2)`, submission.ID, userID); err != nil {
			return fmt.Errorf("link advisor: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission with resolved author and advisor references.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1", submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}

	authors, advisors, err := r.loadParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	submission.Authors = authors
	submission.Advisors = advisors
	return &submission, nil
}

func (r *SubmissionRepository) loadParticipants(ctx context.Context, submissionID string) ([]models.UserRef, []models.UserRef, error) {
	const authorQuery = `SELECT u.id, u.full_name, u.email, u.role FROM users u
	JOIN submission_authors sa ON sa.user_id = u.id WHERE sa.submission_id = $1 ORDER BY u.full_name`
	var authors []models.UserRef
	if err := r.db.SelectContext(ctx, &authors, authorQuery, submissionID); err != nil {
		return nil, nil, fmt.Errorf("load authors: %w", err)
	}

	const advisorQuery = `SELECT u.id, u.full_name, u.email, u.role FROM users u
	JOIN submission_advisors sv ON sv.user_id = u.id WHERE sv.submission_id = $1 ORDER BY u.full_name`
	var advisors []models.UserRef
	if err := r.db.SelectContext(ctx, &advisors, advisorQuery, submissionID); err != nil {
		return nil, nil, fmt.Errorf("load advisors: %w", err)
	}
	return authors, advisors, nil
}

// IsAuthor reports whether the user is linked as an author of the submission.
func (r *SubmissionRepository) IsAuthor(ctx context.Context, submissionID, userID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM submission_authors WHERE submission_id = $1 AND user_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, submissionID, userID); err != nil {
		return false, fmt.Errorf("check author: %w", err)
	}
	return count > 0, nil
}

// List returns submissions matching the filter with a total count.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	baseQuery := strings.Builder{}
	baseQuery.WriteString("FROM submissions s WHERE 1=1")
	args := make([]interface{}, 0, 8)

	if filter.Kind != "" {
		args = append(args, filter.Kind)
		baseQuery.WriteString(fmt.Sprintf(" AND s.kind = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		baseQuery.WriteString(fmt.Sprintf(" AND s.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.ReviewerStatus) > 0 {
		placeholders := make([]string, len(filter.ReviewerStatus))
		for i, status := range filter.ReviewerStatus {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		baseQuery.WriteString(fmt.Sprintf(" AND s.reviewer_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ReviewerID != "" {
		args = append(args, filter.ReviewerID)
		baseQuery.WriteString(fmt.Sprintf(" AND s.reviewer_id = $%d", len(args)))
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		baseQuery.WriteString(fmt.Sprintf(" AND EXISTS (SELECT 1 FROM submission_authors sa WHERE sa.submission_id = s.id AND sa.user_id = $%d)", len(args)))
	}
	if filter.NeedsUpdate != nil {
		args = append(args, *filter.NeedsUpdate)
		baseQuery.WriteString(fmt.Sprintf(" AND s.needs_update = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		baseQuery.WriteString(fmt.Sprintf(" AND LOWER(s.title) LIKE $%d", len(args)))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY s.created_at DESC LIMIT %d OFFSET %d",
		prefixColumns("s"), baseQuery.String(), pageSize, offset)

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery.String())
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	return submissions, total, nil
}

// DeleteMany removes submissions and their participant links.
func (r *SubmissionRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete submissions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"submission_authors", "submission_advisors", "revision_rounds"} {
		query, args, err := sqlx.In(fmt.Sprintf("DELETE FROM %s WHERE submission_id IN (?)", table), ids)
		if err != nil {
			return 0, fmt.Errorf("build delete for %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return 0, fmt.Errorf("delete %s: %w", table, err)
		}
	}

	query, args, err := sqlx.In("DELETE FROM submissions WHERE id IN (?)", ids)
	if err != nil {
		return 0, fmt.Errorf("build delete submissions: %w", err)
	}
	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete submissions: %w", err)
	}
	deleted, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete submissions: %w", err)
	}
	return deleted, nil
}

// ClaimReviewer atomically assigns the reviewer on a submission that has
// none. Exactly one concurrent claimant succeeds; losers get sql.ErrNoRows.
func (r *SubmissionRepository) ClaimReviewer(ctx context.Context, id string, reviewer models.UserRef) error {
	const query = `UPDATE submissions SET
		reviewer_id = $2, reviewer_name = $3, reviewer_email = $4,
		reviewer_status = $5, reviewer_comments = NULL, reviewed_at = NULL, updated_at = $6
	WHERE id = $1 AND reviewer_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, reviewer.ID, reviewer.FullName, reviewer.Email, models.ReviewPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("claim reviewer: %w", err)
	}
	return requireRow(result)
}

// AssignReviewer sets (or replaces) the reviewer and resets the review state.
// Reassignment always clears the previous decision, including when the same
// reviewer is assigned again.
func (r *SubmissionRepository) AssignReviewer(ctx context.Context, id string, reviewer models.UserRef) error {
	const query = `UPDATE submissions SET
		reviewer_id = $2, reviewer_name = $3, reviewer_email = $4,
		reviewer_status = $5, reviewer_comments = NULL, reviewed_at = NULL, updated_at = $6
	WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, reviewer.ID, reviewer.FullName, reviewer.Email, models.ReviewPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("assign reviewer: %w", err)
	}
	return requireRow(result)
}

// UpdateReviewParams groups the columns written by a reviewer decision.
type UpdateReviewParams struct {
	ID               string
	ExpectReviewerID string
	ReviewerStatus   models.ReviewerStatus
	Status           *models.SubmissionStatus
	ReviewerComments *string
	ReviewedAt       time.Time
}

// UpdateReview records a reviewer decision, guarded on the reviewer still
// being the one the caller validated against.
func (r *SubmissionRepository) UpdateReview(ctx context.Context, params UpdateReviewParams) error {
	builder := strings.Builder{}
	builder.WriteString("UPDATE submissions SET reviewer_status = $2, reviewer_comments = $3, reviewed_at = $4, updated_at = $5")
	args := []interface{}{params.ID, params.ReviewerStatus, params.ReviewerComments, params.ReviewedAt, time.Now().UTC()}
	if params.Status != nil {
		args = append(args, *params.Status)
		builder.WriteString(fmt.Sprintf(", status = $%d", len(args)))
	}
	args = append(args, params.ExpectReviewerID)
	builder.WriteString(fmt.Sprintf(" WHERE id = $1 AND reviewer_id = $%d", len(args)))

	result, err := r.db.ExecContext(ctx, builder.String(), args...)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return requireRow(result)
}

// RequestUpdatesParams groups the columns written when a reviewer flags a
// submission as needing changes.
type RequestUpdatesParams struct {
	ID               string
	ExpectReviewerID string
	Message          string
	Deadline         *time.Time
	ReviewedAt       time.Time
}

// RequestUpdates enters the revision cycle: the previous student response is
// cleared so every round starts clean.
func (r *SubmissionRepository) RequestUpdates(ctx context.Context, params RequestUpdatesParams) error {
	const query = `UPDATE submissions SET
		reviewer_status = $3, needs_update = TRUE, update_request = $4, update_deadline = $5,
		reviewed_at = $6, student_update_comments = NULL, student_updated_at = NULL, updated_at = $7
	WHERE id = $1 AND reviewer_id = $2`
	result, err := r.db.ExecContext(ctx, query, params.ID, params.ExpectReviewerID,
		models.ReviewNeedsUpdates, params.Message, params.Deadline, params.ReviewedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("request updates: %w", err)
	}
	return requireRow(result)
}

// RevisionFields carries the optional submission fields a student may update
// while responding to a revision request.
type RevisionFields struct {
	DocumentLink *string
	ImageLink    *string
	Abstract     *string
}

// ApplyRevision records the student response. Guarded on needs_update still
// being set: a revision against a submission with no open request conflicts.
func (r *SubmissionRepository) ApplyRevision(ctx context.Context, id, comments string, respondedAt time.Time, fields RevisionFields) error {
	builder := strings.Builder{}
	builder.WriteString("UPDATE submissions SET needs_update = FALSE, reviewer_status = $2, student_update_comments = $3, student_updated_at = $4, updated_at = $5")
	args := []interface{}{id, models.ReviewPending, comments, respondedAt, time.Now().UTC()}
	if fields.DocumentLink != nil {
		args = append(args, *fields.DocumentLink)
		builder.WriteString(fmt.Sprintf(", document_link = $%d", len(args)))
	}
	if fields.ImageLink != nil {
		args = append(args, *fields.ImageLink)
		builder.WriteString(fmt.Sprintf(", image_link = $%d", len(args)))
	}
	if fields.Abstract != nil {
		args = append(args, *fields.Abstract)
		builder.WriteString(fmt.Sprintf(", abstract = $%d", len(args)))
	}
	builder.WriteString(" WHERE id = $1 AND needs_update = TRUE")

	result, err := r.db.ExecContext(ctx, builder.String(), args...)
	if err != nil {
		return fmt.Errorf("apply revision: %w", err)
	}
	return requireRow(result)
}

// SetStatus moves the lifecycle status, guarded on the current status being
// one of the allowed source states when any are given.
func (r *SubmissionRepository) SetStatus(ctx context.Context, id string, to models.SubmissionStatus, from ...models.SubmissionStatus) error {
	builder := strings.Builder{}
	builder.WriteString("UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1")
	args := []interface{}{id, to, time.Now().UTC()}
	if len(from) > 0 {
		placeholders := make([]string, len(from))
		for i, status := range from {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		builder.WriteString(fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ",")))
	}
	result, err := r.db.ExecContext(ctx, builder.String(), args...)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return requireRow(result)
}

// PublishAll promotes every listed submission to PUBLISH in one transaction.
// If any id fails the reviewer-approved precondition nothing is applied and
// the failing ids are returned. Already-published rows pass (idempotent).
func (r *SubmissionRepository) PublishAll(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin publish: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sqlx.In("SELECT id, status, reviewer_status FROM submissions WHERE id IN (?) FOR UPDATE", ids)
	if err != nil {
		return nil, fmt.Errorf("build publish query: %w", err)
	}
	var rows []struct {
		ID             string                  `db:"id"`
		Status         models.SubmissionStatus `db:"status"`
		ReviewerStatus models.ReviewerStatus   `db:"reviewer_status"`
	}
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load publish candidates: %w", err)
	}

	found := make(map[string]bool, len(rows))
	var failing []string
	for _, row := range rows {
		found[row.ID] = true
		if row.Status == models.StatusPublish {
			continue
		}
		if row.ReviewerStatus != models.ReviewAccepted && row.ReviewerStatus != models.ReviewAcceptedForPublish {
			failing = append(failing, row.ID)
		}
	}
	for _, id := range ids {
		if !found[id] {
			failing = append(failing, id)
		}
	}
	if len(failing) > 0 {
		return failing, nil
	}

	updateQuery, updateArgs, err := sqlx.In("UPDATE submissions SET status = ?, updated_at = ? WHERE id IN (?)", models.StatusPublish, time.Now().UTC(), ids)
	if err != nil {
		return nil, fmt.Errorf("build publish update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(updateQuery), updateArgs...); err != nil {
		return nil, fmt.Errorf("publish submissions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit publish: %w", err)
	}
	return nil, nil
}

func prefixColumns(alias string) string {
	parts := strings.Split(submissionColumns, ",")
	prefixed := make([]string, len(parts))
	for i, part := range parts {
		prefixed[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(prefixed, ", ")
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
