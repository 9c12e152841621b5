package domain

import (
	"errors"
	"time"
)

// User is the core account entity. Users are created on registration and
// mutated only by password reset (PasswordHash) and verification (Verified);
// they are never hard-deleted.
type User struct {
	ID           string
	Username     string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is the coarse authorization tier assigned at registration.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleMember Role = "member" // default for self-registration
)

// Uniqueness violations surfaced by the store when an insert races a
// concurrent registration past the service's pre-checks.
var (
	ErrUsernameTaken = errors.New("username has been used")
	ErrEmailTaken    = errors.New("email has been used")
)

// Validate validates the user for persistence. Returns an error describing
// the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	return nil
}
