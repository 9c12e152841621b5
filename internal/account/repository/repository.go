package repository

import (
	"context"

	"ident-plane/internal/account/domain"
)

// Store defines persistence for user accounts.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create persists the user. Returns domain.ErrUsernameTaken or
	// domain.ErrEmailTaken on a uniqueness conflict.
	Create(ctx context.Context, u *domain.User) error
	// UpdatePassword replaces the stored hash. Errors if no row was updated.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// SetVerified marks the account verified. Errors if no row was updated.
	SetVerified(ctx context.Context, id string) error
}
