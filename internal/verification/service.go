package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
)

// Delivery channels a code can be sent over.
const (
	ChannelSMS      = "SMS"
	ChannelWhatsApp = "WHATSAPP"
	ChannelCall     = "CALL"
)

// ErrInvalidCode indicates the code does not match, expired, or was never sent.
var ErrInvalidCode = errors.New("verification: invalid or expired code")

// CooldownError reports how long the caller must wait before the next send.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("verification: resend blocked for %s", e.Remaining.Round(time.Second))
}

// Service drives phone verification: provider-backed codes with a per-phone
// resend cooldown, flipping the matching account to verified on success.
type Service struct {
	provider Provider
	users    identity.Repository
	cache    *redis.Client
	cooldown time.Duration
	logger   *slog.Logger
}

// NewService wires the verification service. A nil cache disables the
// cooldown, which is acceptable for development only.
func NewService(provider Provider, users identity.Repository, cache *redis.Client, cooldown time.Duration, logger *slog.Logger) *Service {
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Service{provider: provider, users: users, cache: cache, cooldown: cooldown, logger: logger}
}

// Send asks the provider to deliver a fresh code to the phone.
func (s *Service) Send(ctx context.Context, phone, channel string) error {
	if channel == "" {
		channel = ChannelSMS
	}
	if err := s.reserveSendSlot(ctx, phone); err != nil {
		return err
	}
	if err := s.provider.SendOTP(ctx, phone, channel); err != nil {
		// an undelivered code must not burn the caller's cooldown
		s.releaseSendSlot(ctx, phone)
		return fmt.Errorf("send otp: %w", err)
	}
	s.logger.Info("otp sent", "phone", phone, "channel", channel)
	return nil
}

// Verify checks the code and marks the matching account's phone verified.
// Verification may precede registration; an unknown phone still verifies.
func (s *Service) Verify(ctx context.Context, phone, code string) error {
	ok, err := s.provider.CheckOTP(ctx, phone, code)
	if err != nil {
		return fmt.Errorf("check otp: %w", err)
	}
	if !ok {
		return ErrInvalidCode
	}

	user, err := s.users.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		if err := s.users.MarkPhoneVerified(ctx, user.ID); err != nil {
			return fmt.Errorf("mark phone verified: %w", err)
		}
		s.logger.Info("phone verified", "user_id", user.ID, "phone", phone)
	case errors.Is(err, identity.ErrNotFound):
		s.logger.Info("phone verified before registration", "phone", phone)
	default:
		return fmt.Errorf("find account for phone: %w", err)
	}
	return nil
}

// reserveSendSlot enforces the per-phone resend cooldown. Fail-open on cache
// errors, matching the rate limiter.
func (s *Service) reserveSendSlot(ctx context.Context, phone string) error {
	if s.cache == nil {
		return nil
	}
	key := cooldownKey(phone)
	ok, err := s.cache.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.cooldown).Result()
	if err != nil || ok {
		return nil
	}
	remaining, err := s.cache.TTL(ctx, key).Result()
	if err != nil || remaining <= 0 {
		remaining = s.cooldown
	}
	return &CooldownError{Remaining: remaining}
}

func (s *Service) releaseSendSlot(ctx context.Context, phone string) {
	if s.cache == nil {
		return
	}
	s.cache.Del(ctx, cooldownKey(phone))
}

func cooldownKey(phone string) string {
	return "otp:cooldown:" + phone
}
