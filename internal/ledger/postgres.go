package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DB is the subset of pgx execution methods the ledger needs. Both
// *pgxpool.Pool and pgx.Tx satisfy it, which lets callers run balance
// mutations inside their own transaction boundary.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger stores one balance row per account and mutates it exclusively
// through guarded single-statement updates, so the sufficiency check and the
// write are one atomic step inside the database.
type PostgresLedger struct {
	db DB
}

// NewPostgresLedger constructs a Postgres-backed ledger over a pool or an open
// transaction.
func NewPostgresLedger(db DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees a zero balance row exists for the account.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, accountID string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO balances (account_id, balance) VALUES ($1, 0)
        ON CONFLICT (account_id) DO NOTHING`, accountID)
	if err != nil {
		return fmt.Errorf("ensure ledger account: %w", err)
	}
	return nil
}

// Balance returns the current balance for the account.
func (l *PostgresLedger) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var raw string
	err := l.db.QueryRow(ctx, `SELECT balance::text FROM balances WHERE account_id = $1`, accountID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrNoAccount
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("read balance: %w", err)
	}
	return decimal.NewFromString(raw)
}

// Credit adds amount to the account balance in one unconditional update.
func (l *PostgresLedger) Credit(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	amt, err := checkAmount(amount)
	if err != nil {
		return decimal.Decimal{}, err
	}

	const query = `
        UPDATE balances
        SET balance = balance + $2::numeric, updated_at = now()
        WHERE account_id = $1
        RETURNING balance::text`

	var raw string
	err = l.db.QueryRow(ctx, query, accountID, amt.StringFixed(2)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrNoAccount
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("credit balance: %w", err)
	}
	return decimal.NewFromString(raw)
}

// Debit subtracts amount in a single update whose WHERE clause requires
// balance >= amount. Zero affected rows for an existing account means the
// guard failed and the debit is reported as insufficient funds; nothing was
// written.
func (l *PostgresLedger) Debit(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	amt, err := checkAmount(amount)
	if err != nil {
		return decimal.Decimal{}, err
	}

	const query = `
        UPDATE balances
        SET balance = balance - $2::numeric, updated_at = now()
        WHERE account_id = $1 AND balance >= $2::numeric
        RETURNING balance::text`

	var raw string
	err = l.db.QueryRow(ctx, query, accountID, amt.StringFixed(2)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if checkErr := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM balances WHERE account_id = $1)`, accountID).Scan(&exists); checkErr != nil {
			return decimal.Decimal{}, fmt.Errorf("debit existence check: %w", checkErr)
		}
		if !exists {
			return decimal.Decimal{}, ErrNoAccount
		}
		return decimal.Decimal{}, ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("debit balance: %w", err)
	}
	return decimal.NewFromString(raw)
}
