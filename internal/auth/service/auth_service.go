// Package service implements the credential lifecycle flows: login,
// registration, one-time-code password reset, and account verification.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/oops"

	accountdomain "ident-plane/internal/account/domain"
	"ident-plane/internal/auth/validate"
	"ident-plane/internal/notify"
	"ident-plane/internal/otp"
	otpdomain "ident-plane/internal/otp/domain"
	"ident-plane/internal/security"
)

// Sentinel errors for the auth service; the handler maps them to HTTP
// status codes and user-facing messages.
var (
	// ErrInvalidCredential covers both unknown username and wrong password,
	// deliberately undifferentiated to avoid username enumeration.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrInvalidEmail is returned when a password-reset request names an
	// unknown email.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrCodeAlreadySent guards against code flooding: a new code is refused
	// while an unexpired one is outstanding.
	ErrCodeAlreadySent = errors.New("a code has already been sent")
	// ErrInvalidCodeOrEmail is returned when a reset submission does not
	// match an outstanding (email, code) pair.
	ErrInvalidCodeOrEmail = errors.New("invalid code or email")
	// ErrAlreadyVerified is returned when a verified account requests
	// verification again.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrNoActiveCode is returned when a verification code is submitted but
	// none is outstanding (never issued, consumed, or past its TTL).
	ErrNoActiveCode = errors.New("no outstanding code or it has expired")
	// ErrInvalidCode is returned when a submitted verification code does not
	// match the outstanding one.
	ErrInvalidCode = errors.New("invalid code")
)

// ValidationError carries the complete list of field errors for a request.
// All violations are accumulated and returned together, never partially.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, ", ")
}

// AccountStore is the minimal user repository needed by the auth service.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*accountdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*accountdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*accountdomain.User, error)
	Create(ctx context.Context, u *accountdomain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetVerified(ctx context.Context, id string) error
}

// CodeStore is the minimal one-time-code repository needed by the auth
// service. All code mutation happens behind it.
type CodeStore interface {
	GetActiveByUserAndPurpose(ctx context.Context, userID string, purpose otpdomain.Purpose) (*otpdomain.Code, error)
	GetByEmailAndCode(ctx context.Context, email, code string, purpose otpdomain.Purpose) (*otpdomain.Code, error)
	GetByID(ctx context.Context, id string) (*otpdomain.Code, error)
	Create(ctx context.Context, c *otpdomain.Code) error
	Expire(ctx context.Context, id string) error
	ExpireStale(ctx context.Context, userID string, purpose otpdomain.Purpose) error
}

// TxStores bundles the stores bound to one transaction.
type TxStores struct {
	Accounts AccountStore
	Codes    CodeStore
}

// TxRunner runs fn with stores bound to a single transaction: either every
// write in fn commits or none do. Consuming a code and applying its effect
// (password update, verified flag) must not partially succeed.
type TxRunner interface {
	InTx(ctx context.Context, fn func(s TxStores) error) error
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token string
}

// RegisterInput is the registration request. ConfirmPassword is validated
// and then stripped; it is never persisted.
type RegisterInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=100"`
	Username        string `json:"username" validate:"required,max=32"`
	Password        string `json:"password" validate:"required,userpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ResetInput is the second phase of the forgot-password flow.
type ResetInput struct {
	Email           string
	Code            string
	Password        string
	ConfirmPassword string
}

const (
	subjectPasswordReset = "Password reset request"
	subjectAccountVerify = "Account verification"
)

// AuthService orchestrates the credential flows over the stores, hasher,
// token provider, and notifier.
type AuthService struct {
	accounts AccountStore
	codes    CodeStore
	tx       TxRunner
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	notifier notify.Notifier
	validate *validator.Validate
	codeTTL  time.Duration
}

// NewAuthService returns an AuthService with the given dependencies. codeTTL
// bounds how long an issued code stays consumable.
func NewAuthService(
	accounts AccountStore,
	codes CodeStore,
	tx TxRunner,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	notifier notify.Notifier,
	codeTTL time.Duration,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		codes:    codes,
		tx:       tx,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		validate: validate.New(),
		codeTTL:  codeTTL,
	}
}

// Login authenticates username/password and returns a signed session token.
// Unknown username and wrong password produce the identical outcome; no
// storage is touched either way.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredential
	}
	user, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	token, err := s.tokens.Issue(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return &LoginResult{Token: token}, nil
}

// Register creates a user with the default member role. Field, uniqueness,
// and confirmation violations are accumulated and returned together in one
// ValidationError; hashing failure is a separate infrastructure outcome.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)

	errs := validate.Struct(s.validate, in)

	existing, err := s.accounts.GetByUsername(ctx, in.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		errs = append(errs, "Username has been used")
	}
	existing, err = s.accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		errs = append(errs, "Email has been used")
	}
	if in.Password != in.ConfirmPassword {
		errs = append(errs, "Confirm password is not same")
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return oops.Code("HASHING_FAILED").Wrap(err)
	}

	now := time.Now().UTC()
	user := &accountdomain.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         accountdomain.RoleMember,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	if err := s.accounts.Create(ctx, user); err != nil {
		// A concurrent registration can win the uniqueness race after the
		// pre-checks above passed; surface it like the pre-check would.
		switch {
		case errors.Is(err, accountdomain.ErrUsernameTaken):
			return &ValidationError{Errors: []string{"Username has been used"}}
		case errors.Is(err, accountdomain.ErrEmailTaken):
			return &ValidationError{Errors: []string{"Email has been used"}}
		}
		return err
	}
	return nil
}

// RequestPasswordReset issues a password-reset code for the account with the
// given email and delivers it via the notifier. While a code is outstanding
// further requests are refused. If delivery fails the persisted code stays
// in place and the failure is surfaced.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidEmail
	}
	return s.issueCode(ctx, user, otpdomain.PurposePasswordReset, subjectPasswordReset)
}

// ResetPassword consumes a reset code and replaces the account password.
// The code match is checked first; the new password is validated before any
// write; consuming the code and updating the password happen in one
// transaction.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetInput) error {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	code, err := s.codes.GetByEmailAndCode(ctx, in.Email, in.Code, otpdomain.PurposePasswordReset)
	if err != nil {
		return err
	}
	if code == nil {
		return ErrInvalidCodeOrEmail
	}
	if !validate.PasswordStrength(in.Password) {
		return &ValidationError{Errors: []string{validate.PasswordMessage}}
	}
	if in.Password != in.ConfirmPassword {
		return &ValidationError{Errors: []string{"Confirm password is not same"}}
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return oops.Code("HASHING_FAILED").Wrap(err)
	}

	return s.tx.InTx(ctx, func(tx TxStores) error {
		if err := tx.Codes.Expire(ctx, code.ID); err != nil {
			return err
		}
		return tx.Accounts.UpdatePassword(ctx, code.UserID, hash)
	})
}

// VerifyAccount runs the account-verification flow for the authenticated
// user. An empty code always requests a new code (the outstanding-code guard
// is re-checked inside); a present code is consumed and flips the verified
// flag, both writes in one transaction.
func (s *AuthService) VerifyAccount(ctx context.Context, userID, code string) error {
	user, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return oops.Code("ACCOUNT_READ_FAILED").Errorf("authenticated user %s not found", userID)
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	if code == "" {
		return s.issueCode(ctx, user, otpdomain.PurposeAccountVerify, subjectAccountVerify)
	}

	if err := s.codes.ExpireStale(ctx, user.ID, otpdomain.PurposeAccountVerify); err != nil {
		return err
	}
	active, err := s.codes.GetActiveByUserAndPurpose(ctx, user.ID, otpdomain.PurposeAccountVerify)
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoActiveCode
	}
	if !otp.Equal(code, active.Code) {
		return ErrInvalidCode
	}

	return s.tx.InTx(ctx, func(tx TxStores) error {
		if err := tx.Codes.Expire(ctx, active.ID); err != nil {
			return err
		}
		return tx.Accounts.SetVerified(ctx, user.ID)
	})
}

// issueCode is the shared issuance path of both flows: sweep stale rows,
// enforce the single-outstanding-code guard, generate, persist, re-fetch to
// confirm persistence, notify.
func (s *AuthService) issueCode(ctx context.Context, user *accountdomain.User, purpose otpdomain.Purpose, subject string) error {
	if err := s.codes.ExpireStale(ctx, user.ID, purpose); err != nil {
		return err
	}
	active, err := s.codes.GetActiveByUserAndPurpose(ctx, user.ID, purpose)
	if err != nil {
		return err
	}
	if active != nil {
		return ErrCodeAlreadySent
	}

	value, err := otp.GenerateCode()
	if err != nil {
		return oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	now := time.Now().UTC()
	c := &otpdomain.Code{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Purpose:   purpose,
		Code:      value,
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}
	if err := s.codes.Create(ctx, c); err != nil {
		if errors.Is(err, otpdomain.ErrActiveCodeExists) {
			// Lost the race against a concurrent request; same outcome as
			// the guard above.
			return ErrCodeAlreadySent
		}
		return err
	}
	persisted, err := s.codes.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if persisted == nil {
		return oops.Code("OTP_STORE_WRITE_FAILED").Errorf("code %s not found after insert", c.ID)
	}

	if err := s.notifier.Send(ctx, user.Email, subject, value); err != nil {
		// The code is already persisted; it stays consumable even though
		// delivery failed.
		return oops.Code("NOTIFY_FAILED").Wrap(err)
	}
	return nil
}
