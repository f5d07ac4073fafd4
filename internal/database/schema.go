package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/formahub/auth-api/internal/user"
)

// CreateSchema creates the auth tables if they do not exist. Intended for
// development and tests; production deployments run migrations out of band.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*user.User)(nil),
		(*user.AdminProfile)(nil),
		(*user.InstructorProfile)(nil),
		(*user.LearnerProfile)(nil),
	}

	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	return nil
}
