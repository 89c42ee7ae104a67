package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/auth"
	"busticket/internal/logger"
	"busticket/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User, columns ...string) error
	HasTickets(ctx context.Context, userID int64) (bool, error)
	DeleteUser(ctx context.Context, id int64) error
}

// TokenRevoker blacklists a token id until it expires.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

type Service struct {
	DB      DBLayer
	Tokens  *auth.TokenIssuer
	Revoker TokenRevoker
	Logger  *logger.Logger
	now     func() time.Time
}

func NewService(db DBLayer, tokens *auth.TokenIssuer, log *logger.Logger) *Service {
	return &Service{DB: db, Tokens: tokens, Logger: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.ValidationError{Field: "email", Msg: "Email không hợp lệ"}
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := auth.ValidateName(name); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(req.Phone)
	if err := auth.ValidatePhone(phone); err != nil {
		return nil, err
	}

	exists, err := s.DB.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, apperr.Conflict("user", "Email đã được sử dụng")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &models.User{
		UID:          uuid.NewString(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         models.RolePassenger,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.DB.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.Logger.LogSecurity("REGISTER", fmt.Sprintf("user %d registered (%s)", u.ID, u.Email))
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	u, err := s.DB.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Unauthorized("Email hoặc mật khẩu không đúng")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("bad password for user %d", u.ID))
		return nil, apperr.Unauthorized("Email hoặc mật khẩu không đúng")
	}
	if !u.IsActive {
		return nil, apperr.Forbidden("Tài khoản đã bị khóa")
	}
	return s.issue(u)
}

func (s *Service) issue(u *models.User) (*models.AuthResponse, error) {
	token, err := s.Tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &models.AuthResponse{Token: token, User: u}, nil
}

// Logout revokes rawToken. Without a revoker the client just drops it.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.Tokens.Verify(rawToken)
	if err != nil {
		return apperr.Unauthorized("Token không hợp lệ")
	}
	if s.Revoker == nil || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.Revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.Logger.LogSecurity("LOGOUT", fmt.Sprintf("token %s of user %s revoked", claims.ID, claims.Subject))
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, oldPassword) {
		return apperr.ValidationError{Field: "oldPassword", Msg: "Mật khẩu cũ không đúng"}
	}
	return s.setPassword(ctx, u, newPassword)
}

// ResetPassword is the admin path; no old password is required.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	u, err := s.DB.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("user")
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	return s.setPassword(ctx, u, newPassword)
}

func (s *Service) setPassword(ctx context.Context, u *models.User, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now().UTC()
	if err := s.DB.UpdateUser(ctx, u, "password_hash"); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.Logger.LogSecurity("PASSWORD_CHANGED", fmt.Sprintf("user %d", u.ID))
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.DB.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return u, nil
}

// GetByUID lets the auth middleware map external identities.
func (s *Service) GetByUID(ctx context.Context, uid string) (*models.User, error) {
	u, err := s.DB.GetUserByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	users, err := s.DB.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *Service) Update(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var columns []string
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if err := auth.ValidateName(name); err != nil {
			return nil, err
		}
		u.Name = name
		columns = append(columns, "name")
	}
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		if err := auth.ValidatePhone(phone); err != nil {
			return nil, err
		}
		u.Phone = phone
		columns = append(columns, "phone")
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
		columns = append(columns, "avatar")
	}
	if upd.Role != nil {
		if *upd.Role != models.RoleAdmin && *upd.Role != models.RolePassenger {
			return nil, apperr.ValidationError{Field: "role", Msg: "Vai trò không hợp lệ"}
		}
		u.Role = *upd.Role
		columns = append(columns, "role")
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
		columns = append(columns, "is_active")
	}
	if len(columns) == 0 {
		return u, nil
	}

	u.UpdatedAt = s.now().UTC()
	if err := s.DB.UpdateUser(ctx, u, columns...); err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", id, err)
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	hasTickets, err := s.DB.HasTickets(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check tickets: %w", err)
	}
	if hasTickets {
		return apperr.Conflict("user", "Người dùng đã có vé, không thể xóa")
	}
	if err := s.DB.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	return nil
}

// CreateAdmin is used by the operations CLI.
func (s *Service) CreateAdmin(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	resp, err := s.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	role := models.RoleAdmin
	return s.Update(ctx, resp.User.ID, models.UserUpdate{Role: &role})
}
