package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/formahub/auth-api/internal/logging"
	"github.com/formahub/auth-api/internal/user"
)

// fakeUserStore is an in-memory UserStore with the same contract as the
// real repository, including the single-use verification token exchange.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*user.User)}
}

func (s *fakeUserStore) Create(_ context.Context, u *user.User) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return nil, user.ErrDuplicateEmail
		}
	}

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = email
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	return u, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeUserStore) ConsumeVerificationToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.EmailVerificationToken == nil || *u.EmailVerificationToken != token {
			continue
		}
		if u.EmailVerificationExpiresAt == nil || u.EmailVerificationExpiresAt.Before(time.Now()) {
			return user.ErrNotFound
		}
		u.EmailVerified = true
		u.EmailVerificationToken = nil
		u.EmailVerificationExpiresAt = nil
		return nil
	}
	return user.ErrNotFound
}

func (s *fakeUserStore) RecordAdminLogin(_ context.Context, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	if u.Admin != nil {
		u.Admin.LastLoginAt = &at
	}
	return nil
}

func (s *fakeUserStore) SetInstructorApproval(_ context.Context, instructorID, approverID uuid.UUID, approved bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[instructorID]
	if !ok || u.Instructor == nil {
		return user.ErrNotFound
	}

	u.Instructor.IsApproved = approved
	if approved {
		now := time.Now()
		u.Instructor.ApprovedBy = &approverID
		u.Instructor.ApprovedAt = &now
		u.Instructor.RejectionReason = nil
	} else {
		u.Instructor.ApprovedBy = nil
		u.Instructor.ApprovedAt = nil
		u.Instructor.RejectionReason = &reason
	}
	return nil
}

// mustGet returns the stored record by email, bypassing the copy that
// GetByEmail makes.
func (s *fakeUserStore) mustGet(t *testing.T, email string) *user.User {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == strings.ToLower(email) {
			return u
		}
	}
	t.Fatalf("user %q not in store", email)
	return nil
}

type fakeEmailSender struct {
	mu    sync.Mutex
	sends []string
}

func (s *fakeEmailSender) SendVerificationEmail(_ context.Context, toEmail, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, toEmail)
	return nil
}

func setupServiceTest(t *testing.T) (*Service, *fakeUserStore) {
	t.Helper()

	store := newFakeUserStore()
	tokens, err := NewJWTService(testSigningSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}
	svc := NewService(store, tokens, &fakeEmailSender{}, logging.NewLogger(true))
	return svc, store
}

func learnerRequest(email string) RegisterLearnerRequest {
	return RegisterLearnerRequest{
		RegisterRequest: RegisterRequest{
			FirstName:   "Ana",
			LastName:    "Silva",
			Email:       email,
			PhoneNumber: "0612345678",
			Password:    "secret123",
		},
	}
}

func instructorRequest(email string) RegisterInstructorRequest {
	return RegisterInstructorRequest{
		RegisterRequest: RegisterRequest{
			FirstName:   "Marc",
			LastName:    "Dupont",
			Email:       email,
			PhoneNumber: "0698765432",
			Password:    "secret123",
		},
		Skills: []string{"go", "postgres"},
		Bio:    "Backend instructor",
	}
}

func adminRequest(email string) RegisterRequest {
	return RegisterRequest{
		FirstName:   "Root",
		LastName:    "Admin",
		Email:       email,
		PhoneNumber: "0600000000",
		Password:    "secret123",
	}
}

func TestRegisterLearnerDefaults(t *testing.T) {
	svc, store := setupServiceTest(t)

	u, token, err := svc.RegisterLearner(context.Background(), learnerRequest("Ana@Example.com"))
	if err != nil {
		t.Fatalf("RegisterLearner failed: %v", err)
	}

	if u.Role != user.RoleLearner {
		t.Errorf("expected role %s, got %s", user.RoleLearner, u.Role)
	}
	if u.Email != "ana@example.com" {
		t.Errorf("expected lowercased email, got %q", u.Email)
	}
	if !u.IsActive {
		t.Error("expected new account to be active")
	}
	if u.EmailVerified {
		t.Error("expected new account to start unverified")
	}
	if u.Learner == nil {
		t.Fatal("expected a learner profile")
	}
	if u.Learner.SkillsNeeded == nil || len(u.Learner.SkillsNeeded) != 0 {
		t.Errorf("expected empty skillsNeeded, got %#v", u.Learner.SkillsNeeded)
	}
	if u.Learner.Interests == nil || len(u.Learner.Interests) != 0 {
		t.Errorf("expected empty interests, got %#v", u.Learner.Interests)
	}
	if !IsEncodedHash(u.PasswordHash) {
		t.Error("expected the stored secret to be hashed")
	}
	if u.EmailVerificationToken == nil || u.EmailVerificationExpiresAt == nil {
		t.Fatal("expected an open verification window")
	}
	if !u.EmailVerificationExpiresAt.After(time.Now()) {
		t.Error("expected the verification window to end in the future")
	}

	claims, err := svc.tokens.VerifyToken(token)
	if err != nil {
		t.Fatalf("expected a verifiable token: %v", err)
	}
	if claims.UserID != u.ID.String() || claims.Role != user.RoleLearner {
		t.Errorf("token claims mismatch: %+v", claims)
	}

	if _, err := store.GetByEmail(context.Background(), "ana@example.com"); err != nil {
		t.Fatalf("expected the learner to be persisted: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := setupServiceTest(t)

	req := learnerRequest("not-an-email")
	req.Password = "short"
	req.PhoneNumber = "123"

	_, _, err := svc.RegisterLearner(context.Background(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a ValidationError, got %v", err)
	}

	fields := make(map[string]bool)
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	for _, want := range []string{"email", "password", "phoneNumber"} {
		if !fields[want] {
			t.Errorf("expected a failure on %q, got %+v", want, verr.Fields)
		}
	}
}

func TestRegisterInstructorRequiresSkill(t *testing.T) {
	svc, _ := setupServiceTest(t)

	req := instructorRequest("marc@example.com")
	req.Skills = nil

	_, _, err := svc.RegisterInstructor(context.Background(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a ValidationError, got %v", err)
	}
}

func TestRegisterInstructorStartsUnapproved(t *testing.T) {
	svc, _ := setupServiceTest(t)

	u, _, err := svc.RegisterInstructor(context.Background(), instructorRequest("marc@example.com"))
	if err != nil {
		t.Fatalf("RegisterInstructor failed: %v", err)
	}
	if u.Instructor == nil {
		t.Fatal("expected an instructor profile")
	}
	if u.Instructor.IsApproved {
		t.Error("expected a fresh instructor to start unapproved")
	}
	if len(u.Instructor.Skills) != 2 {
		t.Errorf("expected skills to be kept, got %#v", u.Instructor.Skills)
	}
}

func TestRegisterAdminPermissions(t *testing.T) {
	svc, _ := setupServiceTest(t)

	u, _, err := svc.RegisterAdmin(context.Background(), adminRequest("root@example.com"))
	if err != nil {
		t.Fatalf("RegisterAdmin failed: %v", err)
	}
	if u.Admin == nil {
		t.Fatal("expected an admin profile")
	}
	if len(u.Admin.Permissions) != len(user.DefaultAdminPermissions) {
		t.Errorf("expected default permissions, got %#v", u.Admin.Permissions)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := setupServiceTest(t)

	if _, _, err := svc.RegisterLearner(context.Background(), learnerRequest("ana@example.com")); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	// Same address with different casing is still a duplicate
	_, _, err := svc.RegisterLearner(context.Background(), learnerRequest("ANA@example.com"))
	if !errors.Is(err, user.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestLoginLearner(t *testing.T) {
	svc, _ := setupServiceTest(t)

	if _, _, err := svc.RegisterLearner(context.Background(), learnerRequest("ana@example.com")); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	u, token, err := svc.Login(context.Background(), "ana@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if u.Role != user.RoleLearner || token == "" {
		t.Errorf("unexpected login result: role=%s token=%q", u.Role, token)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, store := setupServiceTest(t)

	if _, _, err := svc.RegisterLearner(context.Background(), learnerRequest("ana@example.com")); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	if _, _, err := svc.RegisterAdmin(context.Background(), adminRequest("root@example.com")); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "secret123"},
		{"wrong password", "ana@example.com", "wrongpassword"},
		{"empty password", "ana@example.com", ""},
		{"admin on shared endpoint", "root@example.com", "secret123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Login(context.Background(), tc.email, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}

	// Deactivated accounts are the one distinguishable failure
	store.mustGet(t, "ana@example.com").IsActive = false
	_, _, err := svc.Login(context.Background(), "ana@example.com", "secret123")
	if !errors.Is(err, ErrAccountDeactivated) {
		t.Fatalf("expected ErrAccountDeactivated, got %v", err)
	}
}

func TestLoginUnapprovedInstructor(t *testing.T) {
	svc, store := setupServiceTest(t)

	u, _, err := svc.RegisterInstructor(context.Background(), instructorRequest("marc@example.com"))
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	_, _, err = svc.Login(context.Background(), "marc@example.com", "secret123")
	if !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("expected ErrPendingApproval, got %v", err)
	}

	store.mustGet(t, "marc@example.com").Instructor.IsApproved = true
	logged, _, err := svc.Login(context.Background(), "marc@example.com", "secret123")
	if err != nil {
		t.Fatalf("expected approved instructor to login: %v", err)
	}
	if logged.ID != u.ID {
		t.Error("expected the same principal back")
	}
}

func TestLoginAdmin(t *testing.T) {
	svc, store := setupServiceTest(t)

	if _, _, err := svc.RegisterAdmin(context.Background(), adminRequest("root@example.com")); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	if _, _, err := svc.RegisterLearner(context.Background(), learnerRequest("ana@example.com")); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	// Learners cannot use the admin entry point
	_, _, err := svc.LoginAdmin(context.Background(), "ana@example.com", "secret123")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	u, token, err := svc.LoginAdmin(context.Background(), "root@example.com", "secret123")
	if err != nil {
		t.Fatalf("LoginAdmin failed: %v", err)
	}
	if token == "" {
		t.Error("expected a token")
	}
	if u.Admin == nil || u.Admin.LastLoginAt == nil {
		t.Error("expected last login to be recorded")
	}
	if stored := store.mustGet(t, "root@example.com"); stored.Admin.LastLoginAt == nil {
		t.Error("expected last login to be persisted")
	}
}

func TestVerifyEmail(t *testing.T) {
	svc, store := setupServiceTest(t)

	if _, _, err := svc.RegisterLearner(context.Background(), learnerRequest("ana@example.com")); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	token := *store.mustGet(t, "ana@example.com").EmailVerificationToken

	if err := svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	stored := store.mustGet(t, "ana@example.com")
	if !stored.EmailVerified {
		t.Error("expected the account to be verified")
	}
	if stored.EmailVerificationToken != nil || stored.EmailVerificationExpiresAt != nil {
		t.Error("expected the verification window to be closed")
	}

	// A consumed token can never verify again
	if err := svc.VerifyEmail(context.Background(), token); !errors.Is(err, ErrVerificationToken) {
		t.Fatalf("expected ErrVerificationToken on reuse, got %v", err)
	}
}

func TestVerifyEmailRejectsBadTokens(t *testing.T) {
	svc, store := setupServiceTest(t)

	if err := svc.VerifyEmail(context.Background(), ""); !errors.Is(err, ErrVerificationToken) {
		t.Fatalf("expected ErrVerificationToken for empty token, got %v", err)
	}
	if err := svc.VerifyEmail(context.Background(), "unknown-token"); !errors.Is(err, ErrVerificationToken) {
		t.Fatalf("expected ErrVerificationToken for unknown token, got %v", err)
	}

	if _, _, err := svc.RegisterLearner(context.Background(), learnerRequest("ana@example.com")); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	stored := store.mustGet(t, "ana@example.com")
	expired := time.Now().Add(-time.Hour)
	stored.EmailVerificationExpiresAt = &expired

	err := svc.VerifyEmail(context.Background(), *stored.EmailVerificationToken)
	if !errors.Is(err, ErrVerificationToken) {
		t.Fatalf("expected ErrVerificationToken for expired token, got %v", err)
	}
	if stored.EmailVerified {
		t.Error("expected an expired token to not verify")
	}
}

func TestInstructorApprovalDecisions(t *testing.T) {
	svc, store := setupServiceTest(t)

	admin, _, err := svc.RegisterAdmin(context.Background(), adminRequest("root@example.com"))
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	instructor, _, err := svc.RegisterInstructor(context.Background(), instructorRequest("marc@example.com"))
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	learner, _, err := svc.RegisterLearner(context.Background(), learnerRequest("ana@example.com"))
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	if err := svc.ApproveInstructor(context.Background(), admin.ID, instructor.ID); err != nil {
		t.Fatalf("ApproveInstructor failed: %v", err)
	}
	stored := store.mustGet(t, "marc@example.com")
	if !stored.Instructor.IsApproved {
		t.Error("expected the instructor to be approved")
	}
	if stored.Instructor.ApprovedBy == nil || *stored.Instructor.ApprovedBy != admin.ID {
		t.Error("expected the approver to be recorded")
	}

	if err := svc.RejectInstructor(context.Background(), admin.ID, instructor.ID, "incomplete profile"); err != nil {
		t.Fatalf("RejectInstructor failed: %v", err)
	}
	stored = store.mustGet(t, "marc@example.com")
	if stored.Instructor.IsApproved {
		t.Error("expected the instructor to be unapproved after rejection")
	}
	if stored.Instructor.RejectionReason == nil || *stored.Instructor.RejectionReason != "incomplete profile" {
		t.Error("expected the rejection reason to be recorded")
	}

	if err := svc.ApproveInstructor(context.Background(), admin.ID, learner.ID); !errors.Is(err, ErrNotInstructor) {
		t.Fatalf("expected ErrNotInstructor, got %v", err)
	}
	if err := svc.ApproveInstructor(context.Background(), admin.ID, uuid.New()); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
