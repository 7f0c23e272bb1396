package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/config"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
)

func TestSignAndParseToken(t *testing.T) {
	key := []byte("test-secret")

	signed, _, err := SignToken("user-1", identity.RoleCourier, 3, TokenTypeAccess, time.Minute, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := ParseToken(signed, key)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != identity.RoleCourier || claims.TokenVersion != 3 {
		t.Fatalf("claims round trip mismatch: %+v", claims)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("expected access token type, got %q", claims.TokenType)
	}
}

func TestParseTokenRejectsWrongKey(t *testing.T) {
	signed, _, err := SignToken("user-1", identity.RoleUser, 0, TokenTypeAccess, time.Minute, []byte("k1"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(signed, []byte("k2")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	signed, _, err := SignToken("user-1", identity.RoleUser, 0, TokenTypeAccess, -time.Minute, []byte("k1"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(signed, []byte("k1")); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
}

func registerUser(t *testing.T, repo identity.Repository) identity.User {
	t.Helper()
	ids := identity.NewService(repo, ledger.NewInMemory())
	user, err := ids.Register(context.Background(), identity.Registration{
		Email:    "ada@example.com",
		Phone:    "+2348100000001",
		Password: "correct-horse",
		FullName: "Ada Obi",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func TestLoginRefreshLogout(t *testing.T) {
	repo := identity.NewMemoryRepository()
	user := registerUser(t, repo)
	svc := NewService(testConfig(), repo)
	ctx := context.Background()

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}

	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// an access token must not pass as a refresh token
	if _, _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for access token, got %v", err)
	}

	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// logout bumps the token version, invalidating the old refresh token
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected stale refresh token to be rejected, got %v", err)
	}
}
