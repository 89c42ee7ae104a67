package user_test

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/auth"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateUser(ctx context.Context, u *models.User) error {
	args := m.Called(u)
	return args.Error(0)
}

func (m *MockDBLayer) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDBLayer) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDBLayer) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDBLayer) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(email)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called()
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockDBLayer) UpdateUser(ctx context.Context, u *models.User, columns ...string) error {
	args := m.Called(u, columns)
	return args.Error(0)
}

func (m *MockDBLayer) HasTickets(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) DeleteUser(ctx context.Context, id int64) error {
	args := m.Called(id)
	return args.Error(0)
}

func newService(db user.DBLayer) *user.Service {
	return user.NewService(db, auth.NewTokenIssuer("test-secret", time.Hour), logger.NewWithWriter(io.Discard))
}

func TestRegister(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newService(mockDB)

	mockDB.On("EmailExists", "new@example.com").Return(false, nil)
	mockDB.On("CreateUser", mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) { args.Get(0).(*models.User).ID = 7 }).
		Return(nil)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "  New@Example.com ",
		Password: "Secret!23",
		Name:     "Phạm Minh",
		Phone:    "0912345678",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(7), resp.User.ID)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Equal(t, models.RolePassenger, resp.User.Role)
	assert.NotEmpty(t, resp.User.UID)
	assert.True(t, auth.CheckPassword(resp.User.PasswordHash, "Secret!23"))
	mockDB.AssertExpectations(t)
}

func TestRegisterRejectsDuplicateAndWeakInput(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newService(mockDB)

	mockDB.On("EmailExists", "dup@example.com").Return(true, nil)
	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "dup@example.com", Password: "Secret!23", Name: "Dup User"})
	assert.True(t, apperr.IsConflict(err))

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "x@example.com", Password: "weak", Name: "Weak User"})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "x@example.com", Password: "Secret!23", Name: "Phone User", Phone: "123"})
	assert.True(t, apperr.IsValidation(err))

	mockDB.AssertNotCalled(t, "CreateUser", mock.Anything)
}

func TestLogin(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newService(mockDB)

	hash, err := auth.HashPassword("Secret!23")
	require.NoError(t, err)
	stored := &models.User{ID: 3, Email: "a@example.com", PasswordHash: hash, Role: models.RoleAdmin, IsActive: true}
	mockDB.On("GetUserByEmail", "a@example.com").Return(stored, nil)
	mockDB.On("GetUserByEmail", "missing@example.com").Return(nil, sql.ErrNoRows)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "A@example.com", Password: "Secret!23"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "a@example.com", Password: "wrong"})
	assert.True(t, apperr.IsUnauthorized(err))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "missing@example.com", Password: "Secret!23"})
	assert.True(t, apperr.IsUnauthorized(err))
}

func TestLoginInactiveUser(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newService(mockDB)

	hash, err := auth.HashPassword("Secret!23")
	require.NoError(t, err)
	mockDB.On("GetUserByEmail", "off@example.com").Return(&models.User{ID: 4, PasswordHash: hash}, nil)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "off@example.com", Password: "Secret!23"})
	assert.True(t, apperr.IsForbidden(err))
}

func TestChangePassword(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newService(mockDB)

	hash, err := auth.HashPassword("Secret!23")
	require.NoError(t, err)
	u := &models.User{ID: 5, PasswordHash: hash, IsActive: true}
	mockDB.On("GetUserByID", int64(5)).Return(u, nil)
	mockDB.On("UpdateUser", u, []string{"password_hash"}).Return(nil)

	err = svc.ChangePassword(context.Background(), 5, "bad-old", "Another!45")
	assert.True(t, apperr.IsValidation(err))

	require.NoError(t, svc.ChangePassword(context.Background(), 5, "Secret!23", "Another!45"))
	assert.True(t, auth.CheckPassword(u.PasswordHash, "Another!45"))
	mockDB.AssertExpectations(t)
}

func TestUpdateAndDelete(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := newService(mockDB)

	u := &models.User{ID: 9, Name: "Old Name", Role: models.RolePassenger, IsActive: true}
	mockDB.On("GetUserByID", int64(9)).Return(u, nil)
	mockDB.On("GetUserByID", int64(10)).Return(nil, sql.ErrNoRows)
	mockDB.On("UpdateUser", u, []string{"name", "role"}).Return(nil)

	name := "New Name"
	role := models.RoleAdmin
	got, err := svc.Update(context.Background(), 9, models.UserUpdate{Name: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, models.RoleAdmin, got.Role)

	bad := models.Role("ROOT")
	_, err = svc.Update(context.Background(), 9, models.UserUpdate{Role: &bad})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Update(context.Background(), 10, models.UserUpdate{Name: &name})
	assert.True(t, apperr.IsNotFound(err))

	mockDB.On("HasTickets", int64(9)).Return(true, nil).Once()
	err = svc.Delete(context.Background(), 9)
	assert.True(t, apperr.IsConflict(err))

	mockDB.On("HasTickets", int64(9)).Return(false, nil).Once()
	mockDB.On("DeleteUser", int64(9)).Return(nil)
	require.NoError(t, svc.Delete(context.Background(), 9))
}
