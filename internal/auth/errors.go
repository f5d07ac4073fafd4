package auth

import (
	"errors"
	"fmt"

	"github.com/formahub/auth-api/internal/validation"
)

var (
	// Login failures are deliberately uniform so callers cannot tell which
	// of email, password, or role partition was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrAccountDeactivated = errors.New("account deactivated")
	ErrPendingApproval    = errors.New("instructor approval pending")
	ErrNotApproved        = errors.New("not yet approved")
	ErrUserGone           = errors.New("user no longer exists")
	ErrNotInstructor      = errors.New("user is not an instructor")

	// Unknown, mismatched, and expired verification tokens all collapse to
	// one error to avoid token enumeration.
	ErrVerificationToken = errors.New("invalid or expired verification token")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// ValidationError carries every failing field of a request.
type ValidationError struct {
	Fields []validation.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}
