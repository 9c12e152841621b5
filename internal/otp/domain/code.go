package domain

import (
	"errors"
	"time"
)

// Purpose discriminates which flow a one-time code belongs to.
type Purpose string

const (
	PurposePasswordReset Purpose = "password_reset"
	PurposeAccountVerify Purpose = "account_verify"
)

// ErrActiveCodeExists is returned when a code is issued while an unexpired
// code for the same (user, purpose) is still outstanding. The store raises it
// atomically, so two concurrent issuance requests cannot both succeed.
var ErrActiveCodeExists = errors.New("an active code already exists for this user and purpose")

// Code is a single-use numeric code bound to a user and a purpose. It becomes
// unusable either by consumption (Expired set exactly once) or by its
// ExpiresAt passing.
type Code struct {
	ID        string
	UserID    string
	Purpose   Purpose
	Code      string
	Expired   bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the code is still usable at the given instant.
func (c *Code) Active(now time.Time) bool {
	return !c.Expired && c.ExpiresAt.After(now)
}
