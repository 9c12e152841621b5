package notify

import (
	"context"
	"sync"
	"time"
)

const devCodeTTL = 15 * time.Minute

type devEntry struct {
	code      string
	expiresAt time.Time
}

// DevSink is a Notifier for dev OTP mode: instead of sending email it keeps
// the latest code per recipient for retrieval via GET /dev/otp. Not used in
// production (config rejects dev OTP mode there).
type DevSink struct {
	mu   sync.RWMutex
	m    map[string]devEntry
	nowF func() time.Time
}

// NewDevSink returns an empty in-memory code sink.
func NewDevSink() *DevSink {
	return &DevSink{
		m:    make(map[string]devEntry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Send records the code for toEmail instead of delivering it.
func (s *DevSink) Send(ctx context.Context, toEmail, subject, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[toEmail] = devEntry{code: code, expiresAt: s.nowF().Add(devCodeTTL)}
	return nil
}

// Get returns the last code recorded for email if present and not expired.
func (s *DevSink) Get(email string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[email]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, email)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}
