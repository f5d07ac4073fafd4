package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formahub/auth-api/internal/logging"
	"github.com/formahub/auth-api/internal/user"
	"github.com/formahub/auth-api/internal/validation"
)

// verificationTokenTTL is the window in which a fresh account can exchange
// its emailed token for the verified flag.
const verificationTokenTTL = 48 * time.Hour

// Service handles authentication business logic
type Service struct {
	users  UserStore
	tokens TokenService
	email  EmailSender
	logger *logging.Logger
}

func NewService(users UserStore, tokens TokenService, email EmailSender, logger *logging.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		email:  email,
		logger: logger,
	}
}

// RegisterRequest holds the fields common to all three registration shapes.
type RegisterRequest struct {
	FirstName   string `json:"firstName" validate:"required,min=2,max=50"`
	LastName    string `json:"lastName" validate:"required,min=2,max=50"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
	Password    string `json:"password" validate:"required,min=6"`
}

// RegisterInstructorRequest additionally requires at least one skill.
type RegisterInstructorRequest struct {
	RegisterRequest
	Skills []string `json:"skills" validate:"required,min=1,dive,required"`
	Bio    string   `json:"bio" validate:"max=500"`
}

// RegisterLearnerRequest carries the learner collections; skillsNeeded may
// be empty (an omitted field decodes to nil and is treated as empty).
type RegisterLearnerRequest struct {
	RegisterRequest
	SkillsNeeded []string `json:"skillsNeeded" validate:"omitempty,dive,required"`
	Interests    []string `json:"interests" validate:"omitempty,dive,required"`
}

// RegisterAdmin creates an administrator with the default permission set and
// returns the new principal plus its bearer token.
func (s *Service) RegisterAdmin(ctx context.Context, req RegisterRequest) (*user.User, string, error) {
	if errs := validation.Struct(req); errs != nil {
		return nil, "", &ValidationError{Fields: errs}
	}

	u := s.newPrincipal(req, user.RoleAdmin)
	u.Admin = &user.AdminProfile{
		Permissions: append([]string(nil), user.DefaultAdminPermissions...),
	}

	return s.register(ctx, u)
}

// RegisterInstructor creates an instructor. The approval flag starts false;
// course-creation capabilities stay gated until an administrator approves.
func (s *Service) RegisterInstructor(ctx context.Context, req RegisterInstructorRequest) (*user.User, string, error) {
	if errs := validation.Struct(req); errs != nil {
		return nil, "", &ValidationError{Fields: errs}
	}

	u := s.newPrincipal(req.RegisterRequest, user.RoleInstructor)
	u.Instructor = &user.InstructorProfile{
		Skills:       req.Skills,
		Certificates: []user.Certificate{},
		Projects:     []user.Project{},
		Bio:          req.Bio,
		IsApproved:   false,
	}

	return s.register(ctx, u)
}

// RegisterLearner creates a learner with empty enrollment and wishlist.
func (s *Service) RegisterLearner(ctx context.Context, req RegisterLearnerRequest) (*user.User, string, error) {
	if errs := validation.Struct(req); errs != nil {
		return nil, "", &ValidationError{Fields: errs}
	}

	u := s.newPrincipal(req.RegisterRequest, user.RoleLearner)
	u.Learner = &user.LearnerProfile{
		SkillsNeeded: emptyIfNil(req.SkillsNeeded),
		Interests:    emptyIfNil(req.Interests),
		Enrollments:  []user.Enrollment{},
		Wishlist:     []uuid.UUID{},
	}

	return s.register(ctx, u)
}

func (s *Service) newPrincipal(req RegisterRequest, role user.Role) *user.User {
	return &user.User{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		PhoneNumber: req.PhoneNumber,
		// Repository receives the hash only; plaintext is never persisted
		PasswordHash: req.Password,
		Role:         role,
		IsActive:     true,
	}
}

// register hashes the secret, opens the verification window, persists the
// principal atomically and issues its bearer token.
func (s *Service) register(ctx context.Context, u *user.User) (*user.User, string, error) {
	passwordHash, err := EnsureHashed(u.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = passwordHash

	verificationToken, err := generateRandomToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	expiresAt := time.Now().Add(verificationTokenTTL)
	u.EmailVerificationToken = &verificationToken
	u.EmailVerificationExpiresAt = &expiresAt

	created, err := s.users.Create(ctx, u)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, "", user.ErrDuplicateEmail
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.CreateToken(created.ID, created.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create token: %w", err)
	}

	// Send verification email in a goroutine (non-blocking); a failed send
	// never fails registration
	go func() {
		emailCtx := context.Background()
		if err := s.email.SendVerificationEmail(emailCtx, created.Email, verificationToken); err != nil {
			s.logger.Warn("failed to send verification email", "email", created.Email, "error", err)
		}
	}()

	return created, token, nil
}

// LoginAdmin authenticates through the administrator-only entry point and
// records the last-login timestamp before responding.
func (s *Service) LoginAdmin(ctx context.Context, email, password string) (*user.User, string, error) {
	u, err := s.authenticate(ctx, email, password, user.RoleAdmin)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	if err := s.users.RecordAdminLogin(ctx, u.ID, now); err != nil {
		return nil, "", fmt.Errorf("failed to record admin login: %w", err)
	}
	if u.Admin != nil {
		u.Admin.LastLoginAt = &now
	}

	token, err := s.tokens.CreateToken(u.ID, u.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create token: %w", err)
	}
	return u, token, nil
}

// Login authenticates instructors and learners through the shared entry
// point. Administrators cannot use it; they get the same uniform rejection
// as an unknown email. Unapproved instructors are rejected distinctly so a
// client can render a pending state.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	u, err := s.authenticate(ctx, email, password, user.RoleInstructor, user.RoleLearner)
	if err != nil {
		return nil, "", err
	}

	if u.Role == user.RoleInstructor && (u.Instructor == nil || !u.Instructor.IsApproved) {
		return nil, "", ErrPendingApproval
	}

	token, err := s.tokens.CreateToken(u.ID, u.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create token: %w", err)
	}
	return u, token, nil
}

// authenticate looks up the principal and checks partition, status and
// secret, in that order. Unknown email, wrong partition and wrong password
// are indistinguishable to the caller.
func (s *Service) authenticate(ctx context.Context, email, password string, allowed ...user.Role) (*user.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	roleAllowed := false
	for _, role := range allowed {
		if u.Role == role {
			roleAllowed = true
			break
		}
	}
	if !roleAllowed {
		return nil, ErrInvalidCredentials
	}

	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}

	if !VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// VerifyEmail exchanges a one-time token for the verified flag. The flag
// flip and the token clear are a single persisted update; a consumed token
// can never verify again.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrVerificationToken
	}

	err := s.users.ConsumeVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrVerificationToken
		}
		return fmt.Errorf("failed to verify email: %w", err)
	}
	return nil
}

// ApproveInstructor records an administrator's sign-off, unlocking
// instructor-only capabilities for the target.
func (s *Service) ApproveInstructor(ctx context.Context, adminID, instructorID uuid.UUID) error {
	return s.decideApproval(ctx, adminID, instructorID, true, "")
}

// RejectInstructor records a rejection with its reason.
func (s *Service) RejectInstructor(ctx context.Context, adminID, instructorID uuid.UUID, reason string) error {
	return s.decideApproval(ctx, adminID, instructorID, false, reason)
}

func (s *Service) decideApproval(ctx context.Context, adminID, instructorID uuid.UUID, approved bool, reason string) error {
	target, err := s.users.GetByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.ErrNotFound
		}
		return fmt.Errorf("failed to get instructor: %w", err)
	}
	if target.Role != user.RoleInstructor {
		return ErrNotInstructor
	}

	if err := s.users.SetInstructorApproval(ctx, instructorID, adminID, approved, reason); err != nil {
		return fmt.Errorf("failed to set instructor approval: %w", err)
	}

	s.logger.Info("instructor approval decided",
		"instructor_id", instructorID,
		"admin_id", adminID,
		"approved", approved,
	)
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
