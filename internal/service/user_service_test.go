package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/innovation-cell/research-portal-api/internal/dto"
	"github.com/innovation-cell/research-portal-api/internal/models"
	appErrors "github.com/innovation-cell/research-portal-api/pkg/errors"
)

// adminUserStoreStub covers the full userStore surface, unlike the shared
// read-only stub used by the submission tests.
type adminUserStoreStub struct {
	users   map[string]*models.User
	revoked []string
	nextID  int
}

func newAdminUserStoreStub(users ...*models.User) *adminUserStoreStub {
	stub := &adminUserStoreStub{users: make(map[string]*models.User)}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return stub
}

func (s *adminUserStoreStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (s *adminUserStoreStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *adminUserStoreStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var result []models.User
	for _, user := range s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && user.Active != *filter.Active {
			continue
		}
		result = append(result, *user)
	}
	return result, len(result), nil
}

func (s *adminUserStoreStub) Create(ctx context.Context, user *models.User) error {
	s.nextID++
	user.ID = fmt.Sprintf("usr-%d", s.nextID)
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *adminUserStoreStub) Update(ctx context.Context, user *models.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *adminUserStoreStub) Deactivate(ctx context.Context, id string) error {
	user, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Active = false
	return nil
}

func (s *adminUserStoreStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.revoked = append(s.revoked, userID)
	return nil
}

func userServiceForTest(store *adminUserStoreStub) *UserService {
	return NewUserService(store, &auditStub{}, nil)
}

func TestCreateUser(t *testing.T) {
	store := newAdminUserStoreStub()
	svc := userServiceForTest(store)

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email:      "Asha@Uni.edu",
		Password:   "secret123",
		FullName:   "Asha Verma",
		Role:       "STUDENT",
		Department: "CSE",
	}, adminClaims("adm-1"))
	require.NoError(t, err)
	require.Equal(t, "asha@uni.edu", user.Email)
	require.Equal(t, models.RoleStudent, user.Role)
	require.True(t, user.Active)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	svc := userServiceForTest(newAdminUserStoreStub())

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email: "x@uni.edu", Password: "secret123", FullName: "X", Role: "STUDENT",
	}, facultyClaims("fac-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newAdminUserStoreStub(&models.User{ID: "usr-1", Email: "asha@uni.edu", Role: models.RoleStudent, Active: true})
	svc := userServiceForTest(store)

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email: "asha@uni.edu", Password: "secret123", FullName: "Asha", Role: "STUDENT",
	}, adminClaims("adm-1"))
	require.Error(t, err)
	typed := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, typed.Code)
	require.Contains(t, typed.Message, "already registered")
}

func TestGetUserSelfOrAdmin(t *testing.T) {
	store := newAdminUserStoreStub(&models.User{ID: "stu-1", Email: "asha@uni.edu", Role: models.RoleStudent, Active: true})
	svc := userServiceForTest(store)

	_, err := svc.Get(context.Background(), "stu-1", studentClaims("stu-1"))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "stu-1", adminClaims("adm-1"))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "stu-1", studentClaims("stu-2"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUpdateUserRoleChangeRevokesTokens(t *testing.T) {
	store := newAdminUserStoreStub(&models.User{ID: "usr-1", Email: "ben@uni.edu", FullName: "Ben", Role: models.RoleStudent, Active: true})
	svc := userServiceForTest(store)

	role := "FACULTY"
	user, err := svc.Update(context.Background(), "usr-1", dto.UpdateUserRequest{Role: &role}, adminClaims("adm-1"))
	require.NoError(t, err)
	require.Equal(t, models.RoleFaculty, user.Role)
	require.Equal(t, []string{"usr-1"}, store.revoked)
}

func TestUpdateUserSameRoleKeepsTokens(t *testing.T) {
	store := newAdminUserStoreStub(&models.User{ID: "usr-1", Email: "ben@uni.edu", FullName: "Ben", Role: models.RoleStudent, Active: true})
	svc := userServiceForTest(store)

	name := "Benjamin Iyer"
	user, err := svc.Update(context.Background(), "usr-1", dto.UpdateUserRequest{FullName: &name}, adminClaims("adm-1"))
	require.NoError(t, err)
	require.Equal(t, "Benjamin Iyer", user.FullName)
	require.Empty(t, store.revoked)
}

func TestDeactivateUser(t *testing.T) {
	store := newAdminUserStoreStub(&models.User{ID: "usr-1", Email: "ben@uni.edu", Role: models.RoleStudent, Active: true})
	svc := userServiceForTest(store)

	require.NoError(t, svc.Deactivate(context.Background(), "usr-1", adminClaims("adm-1")))
	require.False(t, store.users["usr-1"].Active)
	require.Equal(t, []string{"usr-1"}, store.revoked)
}

func TestDeactivateSelfRejected(t *testing.T) {
	store := newAdminUserStoreStub(&models.User{ID: "adm-1", Email: "root@uni.edu", Role: models.RoleAdmin, Active: true})
	svc := userServiceForTest(store)

	err := svc.Deactivate(context.Background(), "adm-1", adminClaims("adm-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestListUsersRoleFilter(t *testing.T) {
	store := newAdminUserStoreStub(
		&models.User{ID: "usr-1", Email: "a@uni.edu", Role: models.RoleStudent, Active: true},
		&models.User{ID: "usr-2", Email: "b@uni.edu", Role: models.RoleFaculty, Active: true},
	)
	svc := userServiceForTest(store)

	users, _, err := svc.List(context.Background(), dto.UserQuery{Role: "FACULTY"}, adminClaims("adm-1"))
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "usr-2", users[0].ID)

	_, _, err = svc.List(context.Background(), dto.UserQuery{Role: "WIZARD"}, adminClaims("adm-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.List(context.Background(), dto.UserQuery{}, studentClaims("stu-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
