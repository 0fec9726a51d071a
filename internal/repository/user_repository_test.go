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

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func userRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "department", "active", "last_login", "created_at", "updated_at"}).
		AddRow("usr-1", "asha@uni.edu", "$2a$10$hash", "Asha Verma", "STUDENT", "CSE", true, nil, now, now)
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("asha@uni.edu").
		WillReturnRows(userRows())

	user, err := repo.FindByEmail(context.Background(), "asha@uni.edu")
	require.NoError(t, err)
	require.Equal(t, "usr-1", user.ID)
	require.Equal(t, models.RoleStudent, user.Role)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("nobody@uni.edu").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByEmail(context.Background(), "nobody@uni.edu")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindManyByIDs(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "role"}).
		AddRow("usr-1", "Asha Verma", "asha@uni.edu", "STUDENT").
		AddRow("usr-2", "Dr. Rao", "rao@uni.edu", "FACULTY")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, email, role FROM users WHERE id IN")).
		WithArgs("usr-1", "usr-2").
		WillReturnRows(rows)

	refs, err := repo.FindManyByIDs(context.Background(), []string{"usr-1", "usr-2"})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, models.RoleFaculty, refs[1].Role)

	// No ids means no query at all.
	refs, err = repo.FindManyByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, refs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Email:        "ben@uni.edu",
		PasswordHash: "$2a$10$hash",
		FullName:     "Ben Iyer",
		Role:         models.RoleStudent,
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRevokeUserRefreshTokens(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE")).
		WithArgs("usr-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, repo.RevokeUserRefreshTokens(context.Background(), "usr-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
