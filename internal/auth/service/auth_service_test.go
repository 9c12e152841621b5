package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	accountdomain "ident-plane/internal/account/domain"
	otpdomain "ident-plane/internal/otp/domain"
	"ident-plane/internal/security"
)

type memAccounts struct {
	mu    sync.Mutex
	users map[string]*accountdomain.User
}

func newMemAccounts() *memAccounts {
	return &memAccounts{users: make(map[string]*accountdomain.User)}
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*accountdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memAccounts) GetByUsername(_ context.Context, username string) (*accountdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*accountdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) Create(_ context.Context, u *accountdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return accountdomain.ErrUsernameTaken
		}
		if existing.Email == u.Email {
			return accountdomain.ErrEmailTaken
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memAccounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memAccounts) SetVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.Verified = true
	u.UpdatedAt = time.Now().UTC()
	return nil
}

type memCodes struct {
	mu       sync.Mutex
	codes    map[string]*otpdomain.Code
	accounts *memAccounts
}

func newMemCodes(accounts *memAccounts) *memCodes {
	return &memCodes{codes: make(map[string]*otpdomain.Code), accounts: accounts}
}

func (m *memCodes) GetActiveByUserAndPurpose(_ context.Context, userID string, purpose otpdomain.Purpose) (*otpdomain.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, c := range m.codes {
		if c.UserID == userID && c.Purpose == purpose && c.Active(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCodes) GetByEmailAndCode(ctx context.Context, email, code string, purpose otpdomain.Purpose) (*otpdomain.Code, error) {
	user, err := m.accounts.GetByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, c := range m.codes {
		if c.UserID == user.ID && c.Purpose == purpose && c.Code == code && c.Active(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCodes) GetByID(_ context.Context, id string) (*otpdomain.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.codes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memCodes) Create(_ context.Context, c *otpdomain.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.codes {
		if existing.UserID == c.UserID && existing.Purpose == c.Purpose && !existing.Expired {
			return otpdomain.ErrActiveCodeExists
		}
	}
	cp := *c
	m.codes[c.ID] = &cp
	return nil
}

func (m *memCodes) Expire(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[id]
	if !ok || c.Expired {
		return errors.New("code not found or already expired")
	}
	c.Expired = true
	return nil
}

func (m *memCodes) ExpireStale(_ context.Context, userID string, purpose otpdomain.Purpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, c := range m.codes {
		if c.UserID == userID && c.Purpose == purpose && !c.Expired && !now.Before(c.ExpiresAt) {
			c.Expired = true
		}
	}
	return nil
}

func (m *memCodes) activeCount(userID string, purpose otpdomain.Purpose) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	n := 0
	for _, c := range m.codes {
		if c.UserID == userID && c.Purpose == purpose && c.Active(now) {
			n++
		}
	}
	return n
}

type memTx struct {
	accounts *memAccounts
	codes    *memCodes
}

func (t *memTx) InTx(_ context.Context, fn func(s TxStores) error) error {
	return fn(TxStores{Accounts: t.accounts, Codes: t.codes})
}

type sentMail struct {
	to      string
	subject string
	code    string
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentMail
	failErr error
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failErr != nil {
		return n.failErr
	}
	n.sent = append(n.sent, sentMail{to: to, subject: subject, code: code})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return n.sent[len(n.sent)-1]
}

type fixture struct {
	svc      *AuthService
	accounts *memAccounts
	codes    *memCodes
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accounts := newMemAccounts()
	codes := newMemCodes(accounts)
	notifier := &recordingNotifier{}
	svc := NewAuthService(
		accounts,
		codes,
		&memTx{accounts: accounts, codes: codes},
		security.NewHasher(4),
		security.NewTokenProvider([]byte("test-secret"), "test", 0),
		notifier,
		15*time.Minute,
	)
	return &fixture{svc: svc, accounts: accounts, codes: codes, notifier: notifier}
}

func (f *fixture) register(t *testing.T, name, email, username, password string) {
	t.Helper()
	err := f.svc.Register(context.Background(), RegisterInput{
		Name:            name,
		Email:           email,
		Username:        username,
		Password:        password,
		ConfirmPassword: password,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")

	res, err := f.svc.Login(context.Background(), "al", "Abcd1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}

	if _, err := f.svc.Login(context.Background(), "al", "wrong-password"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("wrong password: got %v, want ErrInvalidCredential", err)
	}
	if _, err := f.svc.Login(context.Background(), "nobody", "Abcd1234"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("unknown username: got %v, want ErrInvalidCredential", err)
	}
	if _, err := f.svc.Login(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("empty input: got %v, want ErrInvalidCredential", err)
	}
}

func TestRegisterAccumulatesAllErrors(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")

	err := f.svc.Register(context.Background(), RegisterInput{
		Name:            "Other",
		Email:           "al@x.com",
		Username:        "al",
		Password:        "weak",
		ConfirmPassword: "weaker",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	joined := strings.Join(verr.Errors, "\n")
	for _, want := range []string{
		"Username has been used",
		"Email has been used",
		"Confirm password is not same",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %q", want, joined)
		}
	}
	// The password rule must also fire in the same response.
	if !strings.Contains(strings.ToLower(joined), "password") {
		t.Errorf("missing password strength error in %q", joined)
	}
}

func TestRegisterStoresHashNotPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")

	u, err := f.accounts.GetByUsername(context.Background(), "al")
	if err != nil || u == nil {
		t.Fatalf("lookup: %v %v", u, err)
	}
	if u.PasswordHash == "Abcd1234" || u.PasswordHash == "" {
		t.Fatalf("password stored in the clear or empty: %q", u.PasswordHash)
	}
	if u.Role != accountdomain.RoleMember {
		t.Fatalf("role = %q, want member", u.Role)
	}
	if u.Verified {
		t.Fatal("new account must start unverified")
	}
}

func TestRequestPasswordReset(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")

	if err := f.svc.RequestPasswordReset(context.Background(), "al@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	mail := f.notifier.last(t)
	if mail.to != "al@x.com" || len(mail.code) != 6 {
		t.Fatalf("mail = %+v", mail)
	}

	if err := f.svc.RequestPasswordReset(context.Background(), "al@x.com"); !errors.Is(err, ErrCodeAlreadySent) {
		t.Fatalf("second request: got %v, want ErrCodeAlreadySent", err)
	}
	if err := f.svc.RequestPasswordReset(context.Background(), "nobody@x.com"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("unknown email: got %v, want ErrInvalidEmail", err)
	}
}

func TestRequestPasswordResetConcurrent(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")

	const n = 16
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.RequestPasswordReset(context.Background(), "al@x.com")
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrCodeAlreadySent):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("successful requests = %d, want exactly 1", success)
	}
	u, _ := f.accounts.GetByEmail(context.Background(), "al@x.com")
	if got := f.codes.activeCount(u.ID, otpdomain.PurposePasswordReset); got != 1 {
		t.Fatalf("active codes = %d, want 1", got)
	}
}

func TestRequestPasswordResetNotifyFailureKeepsCode(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")
	f.notifier.failErr = errors.New("smtp down")

	err := f.svc.RequestPasswordReset(context.Background(), "al@x.com")
	if err == nil {
		t.Fatal("expected a delivery error")
	}
	u, _ := f.accounts.GetByEmail(context.Background(), "al@x.com")
	if got := f.codes.activeCount(u.ID, otpdomain.PurposePasswordReset); got != 1 {
		t.Fatalf("active codes = %d, want 1 despite delivery failure", got)
	}
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")
	if err := f.svc.RequestPasswordReset(context.Background(), "al@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	code := f.notifier.last(t).code

	// Wrong code does not consume anything.
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	err := f.svc.ResetPassword(context.Background(), ResetInput{
		Email: "al@x.com", Code: wrong, Password: "Abcd5678", ConfirmPassword: "Abcd5678",
	})
	if !errors.Is(err, ErrInvalidCodeOrEmail) {
		t.Fatalf("wrong code: got %v, want ErrInvalidCodeOrEmail", err)
	}

	// Weak password is rejected before any write; the code stays consumable.
	err = f.svc.ResetPassword(context.Background(), ResetInput{
		Email: "al@x.com", Code: code, Password: "weak", ConfirmPassword: "weak",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("weak password: got %v, want ValidationError", err)
	}

	err = f.svc.ResetPassword(context.Background(), ResetInput{
		Email: "al@x.com", Code: code, Password: "Abcd5678", ConfirmPassword: "Abcd9999",
	})
	if !errors.As(err, &verr) {
		t.Fatalf("mismatched confirm: got %v, want ValidationError", err)
	}

	err = f.svc.ResetPassword(context.Background(), ResetInput{
		Email: "al@x.com", Code: code, Password: "Abcd5678", ConfirmPassword: "Abcd5678",
	})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}

	// Consumed: same code cannot be replayed.
	err = f.svc.ResetPassword(context.Background(), ResetInput{
		Email: "al@x.com", Code: code, Password: "Abcd0000", ConfirmPassword: "Abcd0000",
	})
	if !errors.Is(err, ErrInvalidCodeOrEmail) {
		t.Fatalf("replay: got %v, want ErrInvalidCodeOrEmail", err)
	}

	if _, err := f.svc.Login(context.Background(), "al", "Abcd1234"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "al", "Abcd5678"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestResetPasswordExpiredCode(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")
	if err := f.svc.RequestPasswordReset(context.Background(), "al@x.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	code := f.notifier.last(t).code

	// Age the code past its TTL.
	f.codes.mu.Lock()
	for _, c := range f.codes.codes {
		c.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	}
	f.codes.mu.Unlock()

	err := f.svc.ResetPassword(context.Background(), ResetInput{
		Email: "al@x.com", Code: code, Password: "Abcd5678", ConfirmPassword: "Abcd5678",
	})
	if !errors.Is(err, ErrInvalidCodeOrEmail) {
		t.Fatalf("expired code: got %v, want ErrInvalidCodeOrEmail", err)
	}

	// The lapsed code no longer blocks a fresh request.
	if err := f.svc.RequestPasswordReset(context.Background(), "al@x.com"); err != nil {
		t.Fatalf("request after expiry: %v", err)
	}
}

func TestVerifyAccount(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")
	u, _ := f.accounts.GetByUsername(context.Background(), "al")

	// No code requested yet; submitting one is refused.
	if err := f.svc.VerifyAccount(context.Background(), u.ID, "123456"); !errors.Is(err, ErrNoActiveCode) {
		t.Fatalf("no code: got %v, want ErrNoActiveCode", err)
	}

	// Phase A: empty code requests one.
	if err := f.svc.VerifyAccount(context.Background(), u.ID, ""); err != nil {
		t.Fatalf("request code: %v", err)
	}
	code := f.notifier.last(t).code
	if err := f.svc.VerifyAccount(context.Background(), u.ID, ""); !errors.Is(err, ErrCodeAlreadySent) {
		t.Fatalf("second request: got %v, want ErrCodeAlreadySent", err)
	}

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if err := f.svc.VerifyAccount(context.Background(), u.ID, wrong); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("wrong code: got %v, want ErrInvalidCode", err)
	}

	// Phase B: matching code flips the flag.
	if err := f.svc.VerifyAccount(context.Background(), u.ID, code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	u, _ = f.accounts.GetByID(context.Background(), u.ID)
	if !u.Verified {
		t.Fatal("account not verified")
	}

	// Any further call on a verified account short-circuits.
	if err := f.svc.VerifyAccount(context.Background(), u.ID, ""); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("verified request: got %v, want ErrAlreadyVerified", err)
	}
	if err := f.svc.VerifyAccount(context.Background(), u.ID, code); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("verified submit: got %v, want ErrAlreadyVerified", err)
	}
}

func TestVerifyAccountIndependentOfResetCodes(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "al", "Abcd1234")
	u, _ := f.accounts.GetByUsername(context.Background(), "al")

	if err := f.svc.RequestPasswordReset(context.Background(), "al@x.com"); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	resetCode := f.notifier.last(t).code

	// A pending reset code neither blocks a verification request nor
	// satisfies the verification submit.
	if err := f.svc.VerifyAccount(context.Background(), u.ID, ""); err != nil {
		t.Fatalf("verify request with pending reset code: %v", err)
	}
	verifyCode := f.notifier.last(t).code
	if resetCode != verifyCode {
		if err := f.svc.VerifyAccount(context.Background(), u.ID, resetCode); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("reset code on verify: got %v, want ErrInvalidCode", err)
		}
	}
	if err := f.svc.VerifyAccount(context.Background(), u.ID, verifyCode); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestEndToEndFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "Al", "al@x.com", "al", "Abcd1234")
	if _, err := f.svc.Login(ctx, "al", "Abcd1234"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := f.svc.RequestPasswordReset(ctx, "al@x.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	code := f.notifier.last(t).code
	err := f.svc.ResetPassword(ctx, ResetInput{
		Email: "al@x.com", Code: code, Password: "Abcd5678", ConfirmPassword: "Abcd5678",
	})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.svc.Login(ctx, "al", "Abcd1234"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("old password accepted after reset: %v", err)
	}
	if _, err := f.svc.Login(ctx, "al", "Abcd5678"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}
