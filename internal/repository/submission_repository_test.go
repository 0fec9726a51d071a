package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/innovation-cell/research-portal-api/internal/models"
)

func newSubmissionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func TestSubmissionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_authors")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_advisors")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	submission := &models.Submission{
		Kind:      models.KindPaper,
		Title:     "Sparse Attention",
		Abstract:  "abstract",
		CreatedBy: "stu-1",
	}
	require.NoError(t, repo.Create(context.Background(), submission, []string{"stu-1"}, []string{"fac-1"}))
	require.NotEmpty(t, submission.ID)
	require.Equal(t, models.StatusUpload, submission.Status)
	require.Equal(t, models.ReviewPending, submission.ReviewerStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryClaimReviewer(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	reviewer := models.UserRef{ID: "fac-1", FullName: "Dr. Rao", Email: "rao@uni.edu"}

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND reviewer_id IS NULL")).
		WithArgs("sub-1", "fac-1", "Dr. Rao", "rao@uni.edu", "PENDING", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ClaimReviewer(context.Background(), "sub-1", reviewer))

	// A second claimant matches no row and must lose.
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND reviewer_id IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.ClaimReviewer(context.Background(), "sub-1", reviewer)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateReviewGuardsReviewer(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	status := models.StatusOnReview
	comments := "solid methodology"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET reviewer_status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateReview(context.Background(), UpdateReviewParams{
		ID:               "sub-1",
		ExpectReviewerID: "fac-1",
		ReviewerStatus:   models.ReviewAccepted,
		Status:           &status,
		ReviewerComments: &comments,
		ReviewedAt:       time.Now().UTC(),
	}))

	// Reviewer was replaced between the read and the write.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET reviewer_status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateReview(context.Background(), UpdateReviewParams{
		ID:               "sub-1",
		ExpectReviewerID: "fac-1",
		ReviewerStatus:   models.ReviewAccepted,
		ReviewedAt:       time.Now().UTC(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApplyRevisionRequiresOpenRequest(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	doc := "https://papers.uni.edu/v2.pdf"

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND needs_update = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ApplyRevision(context.Background(), "sub-1", "addressed all comments", time.Now().UTC(), RevisionFields{DocumentLink: &doc}))

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND needs_update = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.ApplyRevision(context.Background(), "sub-1", "addressed all comments", time.Now().UTC(), RevisionFields{})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositorySetStatusFromGuard(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1 AND status IN ($4,$5)")).
		WithArgs("sub-1", "PUBLISH", sqlmock.AnyArg(), "UPLOAD", "ON_REVIEW").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetStatus(context.Background(), "sub-1", models.StatusPublish, models.StatusUpload, models.StatusOnReview))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryPublishAllRollsBackOnIneligible(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "status", "reviewer_status"}).
		AddRow("sub-1", "ON_REVIEW", "ACCEPTED").
		AddRow("sub-2", "UPLOAD", "PENDING")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status, reviewer_status FROM submissions WHERE id IN")).
		WillReturnRows(rows)
	mock.ExpectRollback()

	failing, err := repo.PublishAll(context.Background(), []string{"sub-1", "sub-2", "missing"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sub-2", "missing"}, failing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryPublishAllCommits(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "status", "reviewer_status"}).
		AddRow("sub-1", "ON_REVIEW", "ACCEPTED").
		AddRow("sub-2", "PUBLISH", "ACCEPTED_FOR_PUBLISH")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, status, reviewer_status FROM submissions WHERE id IN")).
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	failing, err := repo.PublishAll(context.Background(), []string{"sub-1", "sub-2"})
	require.NoError(t, err)
	require.Empty(t, failing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryIsAuthor(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submission_authors")).
		WithArgs("sub-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	isAuthor, err := repo.IsAuthor(context.Background(), "sub-1", "stu-1")
	require.NoError(t, err)
	require.True(t, isAuthor)
	require.NoError(t, mock.ExpectationsWereMet())
}
