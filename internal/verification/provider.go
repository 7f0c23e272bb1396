package verification

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// OTPTTL is how long an issued code stays valid.
const OTPTTL = 5 * time.Minute

// maxAttempts caps checks per issued code before it is burned.
const maxAttempts = 5

// Provider delivers and checks one-time passcodes. The provider owns code
// generation; the application never sees the code itself.
type Provider interface {
	SendOTP(ctx context.Context, phone, channel string) error
	CheckOTP(ctx context.Context, phone, code string) (bool, error)
}

// Static issues codes in process and prints them to the log. Development
// stand-in for a real verify API; codes are single use.
type Static struct {
	mu     sync.Mutex
	codes  map[string]*issuedCode
	logger *slog.Logger
}

type issuedCode struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// NewStatic builds the in-process provider.
func NewStatic(logger *slog.Logger) *Static {
	return &Static{codes: make(map[string]*issuedCode), logger: logger}
}

// SendOTP issues a fresh six digit code for the phone, replacing any
// outstanding one.
func (s *Static) SendOTP(_ context.Context, phone, channel string) error {
	code := fmt.Sprintf("%06d", rand.IntN(1000000))

	s.mu.Lock()
	s.codes[phone] = &issuedCode{code: code, expiresAt: time.Now().Add(OTPTTL)}
	s.mu.Unlock()

	s.logger.Info("otp issued", "phone", phone, "channel", channel, "code", code)
	return nil
}

// CheckOTP reports whether the code matches the one outstanding for the phone.
func (s *Static) CheckOTP(_ context.Context, phone, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issued, ok := s.codes[phone]
	if !ok {
		return false, nil
	}
	if time.Now().After(issued.expiresAt) {
		delete(s.codes, phone)
		return false, nil
	}
	issued.attempts++
	if issued.attempts > maxAttempts {
		delete(s.codes, phone)
		return false, nil
	}
	if issued.code != code {
		return false, nil
	}
	delete(s.codes, phone)
	return true, nil
}

var _ Provider = (*Static)(nil)
