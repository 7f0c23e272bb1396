package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/logging"
)

type fakeProvider struct {
	sendErr  error
	sent     []string
	checkOK  bool
	checkErr error
}

func (p *fakeProvider) SendOTP(_ context.Context, phone, _ string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, phone)
	return nil
}

func (p *fakeProvider) CheckOTP(_ context.Context, _, _ string) (bool, error) {
	return p.checkOK, p.checkErr
}

func newVerificationService(t *testing.T, provider Provider) (*Service, identity.Repository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	users := identity.NewMemoryRepository()
	svc := NewService(provider, users, cache, time.Minute, logging.Discard())
	return svc, users, mr
}

func TestSendEnforcesCooldown(t *testing.T) {
	provider := &fakeProvider{}
	svc, _, mr := newVerificationService(t, provider)
	ctx := context.Background()

	if err := svc.Send(ctx, "+2348011112222", ChannelSMS); err != nil {
		t.Fatalf("first send: %v", err)
	}

	err := svc.Send(ctx, "+2348011112222", ChannelSMS)
	var cooldown *CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("second send err = %v, want CooldownError", err)
	}
	if cooldown.Remaining <= 0 || cooldown.Remaining > time.Minute {
		t.Fatalf("remaining = %s, want within (0, 1m]", cooldown.Remaining)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("provider called %d times, want 1", len(provider.sent))
	}

	// a different phone is not throttled
	if err := svc.Send(ctx, "+2348033334444", ChannelSMS); err != nil {
		t.Fatalf("other phone send: %v", err)
	}

	mr.FastForward(61 * time.Second)
	if err := svc.Send(ctx, "+2348011112222", ChannelSMS); err != nil {
		t.Fatalf("send after cooldown: %v", err)
	}
}

func TestSendReleasesCooldownOnProviderFailure(t *testing.T) {
	provider := &fakeProvider{sendErr: errors.New("sms gateway down")}
	svc, _, _ := newVerificationService(t, provider)
	ctx := context.Background()

	if err := svc.Send(ctx, "+2348011112222", ChannelSMS); err == nil {
		t.Fatal("send succeeded, want provider error")
	}

	// the failed attempt must not count against the cooldown
	provider.sendErr = nil
	if err := svc.Send(ctx, "+2348011112222", ChannelSMS); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestSendWithoutCacheSkipsCooldown(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewService(provider, identity.NewMemoryRepository(), nil, time.Minute, logging.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Send(ctx, "+2348011112222", ChannelSMS); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if len(provider.sent) != 3 {
		t.Fatalf("provider called %d times, want 3", len(provider.sent))
	}
}

func TestVerifyMarksRegisteredPhone(t *testing.T) {
	provider := &fakeProvider{checkOK: true}
	svc, users, _ := newVerificationService(t, provider)
	ctx := context.Background()

	err := users.Create(ctx, identity.User{
		ID:     "u1",
		Email:  "ada@example.com",
		Phone:  "+2348011112222",
		Role:   identity.RoleUser,
		Active: true,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := svc.Verify(ctx, "+2348011112222", "123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	user, err := users.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !user.PhoneVerified {
		t.Fatal("phone not marked verified")
	}
}

func TestVerifyUnknownPhoneStillSucceeds(t *testing.T) {
	provider := &fakeProvider{checkOK: true}
	svc, _, _ := newVerificationService(t, provider)

	if err := svc.Verify(context.Background(), "+2348099990000", "123456"); err != nil {
		t.Fatalf("verify unregistered phone: %v", err)
	}
}

func TestVerifyRejectsBadCode(t *testing.T) {
	provider := &fakeProvider{checkOK: false}
	svc, users, _ := newVerificationService(t, provider)
	ctx := context.Background()

	err := users.Create(ctx, identity.User{ID: "u1", Email: "ada@example.com", Phone: "+2348011112222", Role: identity.RoleUser, Active: true})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := svc.Verify(ctx, "+2348011112222", "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("verify err = %v, want ErrInvalidCode", err)
	}
	user, _ := users.FindByID(ctx, "u1")
	if user.PhoneVerified {
		t.Fatal("phone marked verified on bad code")
	}
}

func TestStaticProviderSingleUse(t *testing.T) {
	st := NewStatic(logging.Discard())
	ctx := context.Background()

	if err := st.SendOTP(ctx, "+2348011112222", ChannelSMS); err != nil {
		t.Fatalf("send: %v", err)
	}
	st.mu.Lock()
	code := st.codes["+2348011112222"].code
	st.mu.Unlock()
	if len(code) != 6 {
		t.Fatalf("code %q, want six digits", code)
	}

	if ok, _ := st.CheckOTP(ctx, "+2348011112222", "999999x"); ok {
		t.Fatal("wrong code accepted")
	}
	if ok, _ := st.CheckOTP(ctx, "+2348011112222", code); !ok {
		t.Fatal("right code rejected")
	}
	if ok, _ := st.CheckOTP(ctx, "+2348011112222", code); ok {
		t.Fatal("code accepted twice")
	}
}

func TestStaticProviderBurnsAfterTooManyAttempts(t *testing.T) {
	st := NewStatic(logging.Discard())
	ctx := context.Background()

	if err := st.SendOTP(ctx, "+2348011112222", ChannelSMS); err != nil {
		t.Fatalf("send: %v", err)
	}
	st.mu.Lock()
	code := st.codes["+2348011112222"].code
	st.mu.Unlock()

	for i := 0; i < maxAttempts; i++ {
		if ok, _ := st.CheckOTP(ctx, "+2348011112222", "wrong0"); ok {
			t.Fatal("wrong code accepted")
		}
	}
	if ok, _ := st.CheckOTP(ctx, "+2348011112222", code); ok {
		t.Fatal("code survived the attempt cap")
	}
}
