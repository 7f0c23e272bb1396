package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when a debit guard matches zero rows because
	// the current balance does not cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNoAccount indicates the owning account has no balance row. Accounts
	// are provisioned at registration, so hitting this is a wiring failure,
	// not a retryable condition.
	ErrNoAccount = errors.New("ledger account not found")

	// ErrInvalidAmount rejects zero or negative amounts before any storage access.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Ledger maintains one non-negative balance per account. Implementations must
// evaluate the debit sufficiency guard at the storage layer in a single atomic
// step: two concurrent debits that together exceed the balance must never both
// succeed.
type Ledger interface {
	// EnsureAccount creates a zero balance row for the account if absent.
	EnsureAccount(ctx context.Context, accountID string) error
	// Balance returns the current balance.
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)
	// Credit adds amount to the balance and returns the new balance. It has no
	// upper bound and always succeeds for an existing account.
	Credit(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error)
	// Debit subtracts amount only when balance >= amount, returning the new
	// balance, or ErrInsufficientFunds when the guard fails.
	Debit(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Quantize normalizes a monetary amount to the two decimal places every
// balance and transaction amount is stored at.
func Quantize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

func checkAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	q := Quantize(amount)
	if !q.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return q, nil
}
