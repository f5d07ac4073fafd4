package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/formahub/auth-api/internal/httputil"
	"github.com/formahub/auth-api/internal/logging"
	"github.com/formahub/auth-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

// PrincipalContextKey holds the resolved principal for the request.
const PrincipalContextKey ContextKey = "principal"

// Middleware handles authentication for protected routes
type Middleware struct {
	tokens TokenService
	users  UserStore
}

func NewMiddleware(tokens TokenService, users UserStore) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// RequireAuth extracts and verifies the bearer credential, resolves its
// subject to a live principal (secret excluded) and attaches it to the
// request context. Tokens for deleted principals fail with 401; tokens for
// deactivated principals fail with 403.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.RespondError(w, "not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondError(w, "not authorized, please login", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.VerifyToken(parts[1])
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				httputil.RespondError(w, "token has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
				return
			}
			httputil.RespondError(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			httputil.RespondError(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		principal, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				httputil.RespondError(w, "user no longer exists", httputil.CodeUserGone, http.StatusUnauthorized)
				return
			}
			logger := logging.GetLoggerFromContext(r.Context())
			logger.Error("failed to resolve principal", "error", err.Error())
			httputil.RespondError(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}

		if !principal.IsActive {
			httputil.RespondError(w, "account deactivated", httputil.CodeAccountDeactivated, http.StatusForbidden)
			return
		}

		// The secret never travels with the request
		principal.PasswordHash = ""

		ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles allows only principals whose role is in the given set. Must
// run after RequireAuth.
func RequireRoles(roles ...user.Role) func(next http.Handler) http.Handler {
	allowed := make(map[user.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httputil.RespondError(w, "not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
				return
			}

			if _, ok := allowed[principal.Role]; !ok {
				msg := fmt.Sprintf("role %q is not allowed to access %s", principal.Role, r.URL.Path)
				httputil.RespondError(w, msg, httputil.CodeForbiddenRole, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireApproved is the business gate for instructor capabilities: it
// passes every non-instructor through untouched and rejects instructors
// whose approval is still pending. Independent of RequireRoles.
func RequireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			httputil.RespondError(w, "not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		if principal.Role == user.RoleInstructor {
			if principal.Instructor == nil || !principal.Instructor.IsApproved {
				httputil.RespondError(w, "not yet approved", httputil.CodeNotApproved, http.StatusForbidden)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// PrincipalFromContext extracts the resolved principal from the request context
func PrincipalFromContext(ctx context.Context) (*user.User, bool) {
	principal, ok := ctx.Value(PrincipalContextKey).(*user.User)
	return principal, ok
}
