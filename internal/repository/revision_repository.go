package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/innovation-cell/research-portal-api/internal/models"
)

// RevisionRepository persists the append-only revision round history.
type RevisionRepository struct {
	db *sqlx.DB
}

// NewRevisionRepository constructs the repository.
func NewRevisionRepository(db *sqlx.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

// AppendRound opens a new revision round with the next sequence number.
func (r *RevisionRepository) AppendRound(ctx context.Context, round *models.RevisionRound) error {
	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	if round.RequestedAt.IsZero() {
		round.RequestedAt = time.Now().UTC()
	}

	const query = `INSERT INTO revision_rounds
	(id, submission_id, sequence, request_message, requested_by, requested_at, deadline, response_comments, responded_at)
	VALUES (:id, :submission_id,
		(SELECT COALESCE(MAX(sequence), 0) + 1 FROM revision_rounds WHERE submission_id = :submission_id),
		:request_message, :requested_by, :requested_at, :deadline, :response_comments, :responded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, round); err != nil {
		return fmt.Errorf("append revision round: %w", err)
	}
	return nil
}

// CompleteOpenRound records the student response on the latest open round.
// Returns sql.ErrNoRows when no round is awaiting a response.
func (r *RevisionRepository) CompleteOpenRound(ctx context.Context, submissionID, comments string, respondedAt time.Time) error {
	const query = `UPDATE revision_rounds SET response_comments = $2, responded_at = $3
	WHERE submission_id = $1 AND responded_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, submissionID, comments, respondedAt)
	if err != nil {
		return fmt.Errorf("complete revision round: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListRounds returns the full revision history of a submission, oldest first.
func (r *RevisionRepository) ListRounds(ctx context.Context, submissionID string) ([]models.RevisionRound, error) {
	const query = `SELECT id, submission_id, sequence, request_message, requested_by, requested_at, deadline, response_comments, responded_at
	FROM revision_rounds WHERE submission_id = $1 ORDER BY sequence ASC`
	var rounds []models.RevisionRound
	if err := r.db.SelectContext(ctx, &rounds, query, submissionID); err != nil {
		return nil, fmt.Errorf("list revision rounds: %w", err)
	}
	return rounds, nil
}
