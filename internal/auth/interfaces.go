package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/formahub/auth-api/internal/user"
)

// TokenService defines the interface for bearer credential creation and
// validation. Implementations include JWTService (HS256, default) and
// PasetoService (PASETO v4.local).
type TokenService interface {
	CreateToken(userID uuid.UUID, role user.Role) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// TokenClaims are the verified contents of a bearer credential.
type TokenClaims struct {
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// UserStore is the credential store the auth layer reads and writes.
// Implemented by *user.Repository.
type UserStore interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	ConsumeVerificationToken(ctx context.Context, token string) error
	RecordAdminLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	SetInstructorApproval(ctx context.Context, instructorID, approverID uuid.UUID, approved bool, reason string) error
}

// EmailSender delivers the verification link. Delivery failures never fail
// the operation that queued them.
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
}
