package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles principal persistence. A principal is a base row in
// users plus exactly one role-profile row; both are written in one
// transaction so no partial principal is ever visible.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new principal and its role profile. The email uniqueness
// constraint serializes concurrent registrations with the same address; the
// loser sees ErrDuplicateEmail.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = strings.ToLower(u.Email)

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(u).Exec(ctx); err != nil {
			return err
		}

		switch u.Role {
		case RoleAdmin:
			if u.Admin == nil {
				u.Admin = &AdminProfile{}
			}
			u.Admin.UserID = u.ID
			if _, err := tx.NewInsert().Model(u.Admin).Exec(ctx); err != nil {
				return err
			}
		case RoleInstructor:
			if u.Instructor == nil {
				u.Instructor = &InstructorProfile{}
			}
			u.Instructor.UserID = u.ID
			if _, err := tx.NewInsert().Model(u.Instructor).Exec(ctx); err != nil {
				return err
			}
		case RoleLearner:
			if u.Learner == nil {
				u.Learner = &LearnerProfile{}
			}
			u.Learner.UserID = u.ID
			if _, err := tx.NewInsert().Model(u.Learner).Exec(ctx); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown role %q", u.Role)
		}
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// GetByID retrieves a principal with its role profile.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().
		Model(u).
		Relation("Admin").
		Relation("Instructor").
		Relation("Learner").
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a principal by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u := new(User)
	err := r.db.NewSelect().
		Model(u).
		Relation("Admin").
		Relation("Instructor").
		Relation("Learner").
		Where("lower(u.email) = ?", strings.ToLower(email)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// ConsumeVerificationToken flips the verified flag and clears the token and
// its expiry as one update. Only a stored, unexpired token matches; a token
// that is unknown, already consumed, or expired affects zero rows and
// returns ErrNotFound.
func (r *Repository) ConsumeVerificationToken(ctx context.Context, token string) error {
	result, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("email_verified = ?", true).
		Set("email_verification_token = NULL").
		Set("email_verification_expires_at = NULL").
		Set("updated_at = ?", time.Now()).
		Where("email_verification_token = ?", token).
		Where("email_verification_expires_at > ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to consume verification token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordAdminLogin stamps the administrator's last-login time.
func (r *Repository) RecordAdminLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*AdminProfile)(nil)).
		Set("last_login_at = ?", at).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record admin login: %w", err)
	}
	return nil
}

// SetInstructorApproval records an administrator's approval decision.
// Approval clears any previous rejection reason; rejection clears the
// approver fields.
func (r *Repository) SetInstructorApproval(ctx context.Context, instructorID, approverID uuid.UUID, approved bool, reason string) error {
	q := r.db.NewUpdate().
		Model((*InstructorProfile)(nil)).
		Where("user_id = ?", instructorID)

	if approved {
		q = q.
			Set("is_approved = ?", true).
			Set("approved_by = ?", approverID).
			Set("approved_at = ?", time.Now()).
			Set("rejection_reason = NULL")
	} else {
		q = q.
			Set("is_approved = ?", false).
			Set("approved_by = NULL").
			Set("approved_at = NULL").
			Set("rejection_reason = ?", reason)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set instructor approval: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
