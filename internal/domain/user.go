package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User represents a registered user of the application.
// Password always holds a one-way hash, never the clear-text value.
type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserFilter narrows a user lookup. Zero-value fields are not applied.
type UserFilter struct {
	Email string
}

// UserRepository defines persistence operations for users.
//
// Create must return ErrDuplicateEmail when the store rejects the row
// because another user already holds the email.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Find(ctx context.Context, filter UserFilter) ([]User, error)
}
