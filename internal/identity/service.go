package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrInactive indicates the account has been disabled.
	ErrInactive = errors.New("identity: account disabled")
	// ErrNotCourier indicates a courier-only operation was attempted by a customer.
	ErrNotCourier = errors.New("identity: not a courier account")
)

// Service manages identity lifecycle. Every new account gets a ledger account
// provisioned at signup so balance operations never miss a row later.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
}

// NewService creates a new identity service.
func NewService(repo Repository, l ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: l}
}

// Register creates a new account and provisions its ledger row.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	if len(reg.Password) < 8 {
		return User{}, errors.New("password must be at least 8 characters")
	}
	role := reg.Role
	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleCourier {
		return User{}, fmt.Errorf("unknown role %q", reg.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Email:        reg.Email,
		Phone:        reg.Phone,
		PasswordHash: hash,
		FullName:     reg.FullName,
		Role:         role,
		Active:       true,
		VehicleType:  reg.VehicleType,
		CreatedAt:    time.Now().UTC(),
	}
	if role == RoleCourier {
		user.ApprovalStatus = ApprovalPending
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	if err := s.ledger.EnsureAccount(ctx, user.ID); err != nil {
		return User{}, fmt.Errorf("provision ledger account: %w", err)
	}
	return user, nil
}

// Authenticate verifies login credentials.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !user.Active {
		return User{}, ErrInactive
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err == nil {
		user.LastLogin = time.Now().UTC()
	}
	return user, nil
}

// Profile fetches the account by id.
func (s *Service) Profile(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// SetAvailability flips a courier's duty flag.
func (s *Service) SetAvailability(ctx context.Context, id string, available bool) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !user.IsCourier() {
		return ErrNotCourier
	}
	return s.repo.SetAvailability(ctx, id, available)
}

// ConfirmPhone records a completed phone verification.
func (s *Service) ConfirmPhone(ctx context.Context, id string) error {
	return s.repo.MarkPhoneVerified(ctx, id)
}
