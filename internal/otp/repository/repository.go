package repository

import (
	"context"

	"ident-plane/internal/otp/domain"
)

// Store defines persistence for one-time codes. All mutation of code rows
// goes through this interface; the auth service never writes rows directly.
type Store interface {
	// GetActiveByUserAndPurpose returns the outstanding (unexpired, within
	// TTL) code for (userID, purpose), or nil if there is none.
	GetActiveByUserAndPurpose(ctx context.Context, userID string, purpose domain.Purpose) (*domain.Code, error)
	// GetByEmailAndCode returns the active code matching the owner's email
	// and the exact code value for the purpose, or nil.
	GetByEmailAndCode(ctx context.Context, email, code string, purpose domain.Purpose) (*domain.Code, error)
	// GetByID returns the code row by id regardless of state, or nil.
	GetByID(ctx context.Context, id string) (*domain.Code, error)
	// Create persists the code. Returns domain.ErrActiveCodeExists when an
	// unexpired code for the same (user, purpose) is already present.
	Create(ctx context.Context, c *domain.Code) error
	// Expire marks the code consumed. Errors if no unexpired row was updated.
	Expire(ctx context.Context, id string) error
	// ExpireStale marks codes for (userID, purpose) whose TTL has elapsed as
	// expired, so they no longer block new issuance.
	ExpireStale(ctx context.Context, userID string, purpose domain.Purpose) error
}
