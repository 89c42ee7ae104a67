package auth

import (
	"context"
	"fmt"
	"net/http"

	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/utils"

	"github.com/coreos/go-oidc/v3/oidc"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

// UserResolver maps an external identity onto a local account.
type UserResolver interface {
	GetByUID(ctx context.Context, uid string) (*models.User, error)
}

type Authenticator struct {
	Tokens   *TokenIssuer
	Verifier *oidc.IDTokenVerifier
	Users    UserResolver
	Revoked  RevocationChecker
	Logger   *logger.Logger
}

// NewOIDCVerifier builds a verifier for issuer; an empty issuer disables it.
func NewOIDCVerifier(ctx context.Context, issuer string) (*oidc.IDTokenVerifier, error) {
	if issuer == "" {
		return nil, nil
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return provider.Verifier(&oidc.Config{SkipClientIDCheck: true}), nil
}

// Middleware accepts local HS256 tokens and, when configured, tokens of an
// external OIDC issuer whose subject matches a user's uid.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			userID, role, err := a.resolve(r.Context(), rawToken)
			if err != nil {
				if a.Logger != nil {
					a.Logger.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				}
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, role)))
		})
	}
}

func (a *Authenticator) resolve(ctx context.Context, rawToken string) (int64, models.Role, error) {
	claims, localErr := a.Tokens.Verify(rawToken)
	if localErr == nil {
		if a.Revoked != nil {
			revoked, err := a.Revoked.IsRevoked(ctx, claims.ID)
			if err != nil {
				return 0, "", err
			}
			if revoked {
				return 0, "", fmt.Errorf("token %s was revoked", claims.ID)
			}
		}
		id, err := UserIDFromClaims(claims)
		if err != nil {
			return 0, "", err
		}
		return id, claims.Role, nil
	}
	if a.Verifier == nil || a.Users == nil {
		return 0, "", localErr
	}

	idToken, err := a.Verifier.Verify(ctx, rawToken)
	if err != nil {
		return 0, "", fmt.Errorf("oidc verify: %w", err)
	}
	user, err := a.Users.GetByUID(ctx, idToken.Subject)
	if err != nil {
		return 0, "", fmt.Errorf("no account for subject %s: %w", idToken.Subject, err)
	}
	return user.ID, user.Role, nil
}

// RequireAdmin must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Role(r.Context()) != models.RoleAdmin {
			utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Bạn không có quyền truy cập", "Forbidden"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse(msg, "Unauthorized"))
}

func WithUser(ctx context.Context, userID int64, role models.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// UserID returns the authenticated user id, or 0.
func UserID(ctx context.Context) int64 {
	if uid, ok := ctx.Value(userIDKey).(int64); ok {
		return uid
	}
	return 0
}

func Role(ctx context.Context) models.Role {
	if role, ok := ctx.Value(roleKey).(models.Role); ok {
		return role
	}
	return ""
}

func IsAdmin(ctx context.Context) bool {
	return Role(ctx) == models.RoleAdmin
}
