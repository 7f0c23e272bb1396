package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no user matches the lookup.
	ErrNotFound = errors.New("identity: user not found")
	// ErrExists indicates the email or phone is already registered.
	ErrExists = errors.New("identity: user already exists")
)

const uniqueViolationCode = "23505"

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByPhone(ctx context.Context, phone string) (User, error)
	ActiveCouriers(ctx context.Context) ([]User, error)
	SetAvailability(ctx context.Context, id string, available bool) error
	MarkPhoneVerified(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string) error
	UpdateTokenVersion(ctx context.Context, id string, version int) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, phone, password_hash, full_name, role, active, phone_verified,
        token_version, available, approval_status, COALESCE(vehicle_type, ''), created_at, last_login`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	const query = `
        INSERT INTO users (id, email, phone, password_hash, full_name, role, active, phone_verified,
            token_version, available, approval_status, vehicle_type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13)`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.Phone, user.PasswordHash, user.FullName, user.Role,
		user.Active, user.PhoneVerified, user.TokenVersion, user.Available,
		user.ApprovalStatus, user.VehicleType, user.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	return r.findBy(ctx, "id = $1", id)
}

// FindByEmail fetches a user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findBy(ctx, "email = $1", email)
}

// FindByPhone fetches a user by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (User, error) {
	return r.findBy(ctx, "phone = $1", phone)
}

// ActiveCouriers lists every active courier account. Duty flag and approval
// state are not filtered here; broadcast policy decides what to do with them.
func (r *PostgresRepository) ActiveCouriers(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND active = TRUE`

	rows, err := r.db.Query(ctx, query, RoleCourier)
	if err != nil {
		return nil, fmt.Errorf("list couriers: %w", err)
	}
	defer rows.Close()

	var couriers []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		couriers = append(couriers, user)
	}
	return couriers, rows.Err()
}

// SetAvailability flips the courier duty flag.
func (r *PostgresRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET available = $1 WHERE id = $2`, available, id)
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPhoneVerified records a completed phone verification.
func (r *PostgresRepository) MarkPhoneVerified(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET phone_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark phone verified: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastLogin stamps the most recent successful login.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdateTokenVersion stores the version used to invalidate issued tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET token_version = $1 WHERE id = $2`, version, id)
	if err != nil {
		return fmt.Errorf("update token version: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) findBy(ctx context.Context, cond string, arg any) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + cond

	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		approval  *string
		lastLogin *time.Time
	)
	err := row.Scan(&user.ID, &user.Email, &user.Phone, &user.PasswordHash, &user.FullName,
		&user.Role, &user.Active, &user.PhoneVerified, &user.TokenVersion, &user.Available,
		&approval, &user.VehicleType, &user.CreatedAt, &lastLogin)
	if err != nil {
		return User{}, err
	}
	if approval != nil {
		user.ApprovalStatus = *approval
	}
	if lastLogin != nil {
		user.LastLogin = lastLogin.UTC()
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
