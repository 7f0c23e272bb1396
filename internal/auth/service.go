package auth

import (
	"context"
	"errors"
	"time"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/config"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
)

// Service issues and refreshes token pairs.
type Service struct {
	cfg    config.Config
	idRepo identity.Repository
}

// NewService builds the auth service.
func NewService(cfg config.Config, idRepo identity.Repository) *Service {
	return &Service{cfg: cfg, idRepo: idRepo}
}

// TokenPair is the login response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues an access/refresh pair for an already authenticated user.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	key := []byte(s.cfg.JWTSecret)

	access, accessExp, err := SignToken(user.ID, user.Role, user.TokenVersion, TokenTypeAccess, s.cfg.AccessTokenTTL, key)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := SignToken(user.ID, user.Role, user.TokenVersion, TokenTypeRefresh, s.cfg.RefreshTokenTTL, key)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(accessExp).Seconds()),
	}, nil
}

// Refresh verifies the refresh token and returns a new access token if the
// token version still matches the stored one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := ParseToken(refreshToken, []byte(s.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return "", 0, ErrInvalidToken
	}

	user, err := s.idRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return "", 0, errors.New("user not found")
	}
	if user.TokenVersion != claims.TokenVersion {
		return "", 0, ErrInvalidToken
	}

	access, _, err := SignToken(user.ID, user.Role, user.TokenVersion, TokenTypeAccess, s.cfg.AccessTokenTTL, []byte(s.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}
	return access, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout increments the token version so previously issued tokens stop validating.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.idRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}
