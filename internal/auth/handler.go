package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formahub/auth-api/internal/httputil"
	"github.com/formahub/auth-api/internal/logging"
	"github.com/formahub/auth-api/internal/ratelimit"
	"github.com/formahub/auth-api/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter *ratelimit.Limiter
	logger      *logging.Logger
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a successful registration or login result.
type AuthResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    any    `json:"user"`
}

// UserResponse wraps a public profile.
type UserResponse struct {
	Message string `json:"message"`
	User    any    `json:"user"`
}

// RejectInstructorRequest carries the rejection reason.
type RejectInstructorRequest struct {
	Reason string `json:"reason"`
}

// RegisterAdmin handles administrator registration
// @Summary      Register an administrator
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration fields"
// @Success      201 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation or duplicate email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /register/admin [post]
func (h *Handler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "register") {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, token, err := h.service.RegisterAdmin(r.Context(), req)
	if err != nil {
		h.respondRegisterError(w, r, err)
		return
	}

	h.respondRegistered(w, r, u, token)
}

// RegisterInstructor handles instructor registration
// @Summary      Register an instructor
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterInstructorRequest true "Registration fields"
// @Success      201 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation or duplicate email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /register/formateur [post]
func (h *Handler) RegisterInstructor(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "register") {
		return
	}

	var req RegisterInstructorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, token, err := h.service.RegisterInstructor(r.Context(), req)
	if err != nil {
		h.respondRegisterError(w, r, err)
		return
	}

	h.respondRegistered(w, r, u, token)
}

// RegisterLearner handles learner registration
// @Summary      Register a learner
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterLearnerRequest true "Registration fields"
// @Success      201 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation or duplicate email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /register/visiteur [post]
func (h *Handler) RegisterLearner(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "register") {
		return
	}

	var req RegisterLearnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, token, err := h.service.RegisterLearner(r.Context(), req)
	if err != nil {
		h.respondRegisterError(w, r, err)
		return
	}

	h.respondRegistered(w, r, u, token)
}

// LoginAdmin handles the administrator-only login entry point
// @Summary      Administrator login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} AuthResponse
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Account deactivated"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /login/admin [post]
func (h *Handler) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.LoginAdmin)
}

// Login handles the shared instructor/learner login entry point
// @Summary      Instructor and learner login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} AuthResponse
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Deactivated or pending approval"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.Login)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, authenticate func(ctx context.Context, email, password string) (*user.User, string, error)) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, "login") {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, token, err := authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: invalid credentials", "email", req.Email)
			httputil.RespondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, ErrAccountDeactivated):
			logger.Warn("login failed: account deactivated", "email", req.Email)
			httputil.RespondError(w, "account deactivated", httputil.CodeAccountDeactivated, http.StatusForbidden)
		case errors.Is(err, ErrPendingApproval):
			logger.Warn("login failed: approval pending", "email", req.Email)
			httputil.RespondJSON(w, httputil.ErrorResponse{
				Message:   "your instructor account is awaiting approval",
				Code:      httputil.CodePendingApproval,
				IsPending: true,
			}, http.StatusForbidden)
		default:
			logger.Error("login failed: internal error", "error", err.Error())
			httputil.RespondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user logged in", "user_id", u.ID, "role", u.Role)

	httputil.RespondJSON(w, AuthResponse{
		Message: "logged in successfully",
		Token:   token,
		User:    u.PublicProfile(),
	}, http.StatusOK)
}

// Me returns the authenticated principal's role-shaped public profile
// @Summary      Current principal
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} UserResponse
// @Failure      401 {object} httputil.ErrorResponse "Unauthenticated"
// @Router       /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, "user not found", httputil.CodeNotFound, http.StatusNotFound)
		return
	}

	httputil.RespondJSON(w, UserResponse{
		Message: "ok",
		User:    principal.PublicProfile(),
	}, http.StatusOK)
}

// Logout is informational only: tokens are stateless and expire on their
// own; there is no server-side revocation list.
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.RespondMessage(w, "logged out", http.StatusOK)
}

// VerifyEmail exchanges a one-time token for the verified flag
// @Summary      Verify email address
// @Tags         auth
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired token"
// @Router       /verify-email/{token} [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := chi.URLParam(r, "token")

	err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrVerificationToken) {
			logger.Warn("email verification failed")
			httputil.RespondError(w, "invalid or expired verification link", httputil.CodeVerificationFailed, http.StatusBadRequest)
			return
		}
		logger.Error("email verification failed: internal error", "error", err.Error())
		httputil.RespondError(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("email verified")
	httputil.RespondMessage(w, "email verified successfully, you can now login", http.StatusOK)
}

// ApproveInstructor records an administrator's sign-off on an instructor
// @Summary      Approve an instructor
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Instructor id"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Target is not an instructor"
// @Failure      403 {object} httputil.ErrorResponse "Not an administrator"
// @Failure      404 {object} httputil.ErrorResponse "Unknown instructor"
// @Router       /admin/instructors/{id}/approve [put]
func (h *Handler) ApproveInstructor(w http.ResponseWriter, r *http.Request) {
	h.decideApproval(w, r, true)
}

// RejectInstructor records a rejection with its reason
// @Summary      Reject an instructor
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Instructor id"
// @Param        request body RejectInstructorRequest true "Rejection reason"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Target is not an instructor"
// @Failure      403 {object} httputil.ErrorResponse "Not an administrator"
// @Failure      404 {object} httputil.ErrorResponse "Unknown instructor"
// @Router       /admin/instructors/{id}/reject [put]
func (h *Handler) RejectInstructor(w http.ResponseWriter, r *http.Request) {
	h.decideApproval(w, r, false)
}

func (h *Handler) decideApproval(w http.ResponseWriter, r *http.Request, approved bool) {
	logger := logging.GetLoggerFromContext(r.Context())

	admin, ok := PrincipalFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, "not authorized, please login", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	instructorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondError(w, "invalid instructor id", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if approved {
		err = h.service.ApproveInstructor(r.Context(), admin.ID, instructorID)
	} else {
		var req RejectInstructorRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			httputil.RespondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
			return
		}
		err = h.service.RejectInstructor(r.Context(), admin.ID, instructorID, req.Reason)
	}

	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			httputil.RespondError(w, "instructor not found", httputil.CodeNotFound, http.StatusNotFound)
		case errors.Is(err, ErrNotInstructor):
			httputil.RespondError(w, "target user is not an instructor", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		default:
			logger.Error("approval decision failed", "error", err.Error())
			httputil.RespondError(w, "failed to update instructor approval", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	if approved {
		httputil.RespondMessage(w, "instructor approved", http.StatusOK)
	} else {
		httputil.RespondMessage(w, "instructor rejected", http.StatusOK)
	}
}

// InstructorStats returns the authenticated instructor's earnings and
// rating figures. Reached only through RequireRoles + RequireApproved.
// @Summary      Instructor statistics
// @Tags         instructor
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]any
// @Failure      403 {object} httputil.ErrorResponse "Not an approved instructor"
// @Router       /instructor/stats [get]
func (h *Handler) InstructorStats(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || principal.Instructor == nil {
		httputil.RespondError(w, "instructor profile not found", httputil.CodeNotFound, http.StatusNotFound)
		return
	}

	httputil.RespondJSON(w, map[string]any{
		"message":      "ok",
		"earnings":     principal.Instructor.Earnings,
		"studentCount": principal.Instructor.StudentCount,
		"rating":       principal.Instructor.Rating,
		"reviewCount":  principal.Instructor.ReviewCount,
	}, http.StatusOK)
}

// respondRegistered writes the common 201 shape for the three registration
// variants.
func (h *Handler) respondRegistered(w http.ResponseWriter, r *http.Request, u *user.User, token string) {
	logger := logging.GetLoggerFromContext(r.Context())
	logger.Info("user registered", "user_id", u.ID, "role", u.Role)

	httputil.RespondJSON(w, AuthResponse{
		Message: "registration successful, please check your email to verify your account",
		Token:   token,
		User:    u.PublicProfile(),
	}, http.StatusCreated)
}

// respondRegisterError maps registration failures onto the envelope.
func (h *Handler) respondRegisterError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		logger.Warn("registration failed: validation", "fields", len(verr.Fields))
		httputil.RespondValidationErrors(w, verr.Fields)
	case errors.Is(err, user.ErrDuplicateEmail):
		logger.Warn("registration failed: duplicate email")
		httputil.RespondError(w, "email already exists", httputil.CodeDuplicateEmail, http.StatusBadRequest)
	default:
		logger.Error("registration failed: internal error", "error", err.Error())
		httputil.RespondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

// allow applies the named rate-limit rule to the request's source address.
// Store errors fail open: throttling never takes the auth path down.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, rule string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	result, err := h.rateLimiter.Allow(r.Context(), rule, getClientIP(r))
	if err != nil {
		logger.Error("failed to check rate limit", "rule", rule, "error", err.Error())
		return true
	}
	if !result.Allowed {
		logger.Warn("rate limit exceeded", "rule", rule, "ip", getClientIP(r))
		retryAfter := int(result.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		httputil.RespondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}
	return true
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (behind proxy/load balancer)
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	ip := r.RemoteAddr
	// RemoteAddr format is "IP:port", extract just the IP
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
