package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

// NewInMemory builds a mutex-guarded ledger with the same guard semantics as
// the Postgres implementation. Used by tests and by dev mode without a
// database.
func NewInMemory() Ledger {
	return &inMemoryLedger{balances: make(map[string]decimal.Decimal)}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.balances[accountID]; !ok {
		l.balances[accountID] = decimal.Zero
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, accountID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[accountID]
	if !ok {
		return decimal.Decimal{}, ErrNoAccount
	}
	return balance, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	amt, err := checkAmount(amount)
	if err != nil {
		return decimal.Decimal{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[accountID]
	if !ok {
		return decimal.Decimal{}, ErrNoAccount
	}
	next := balance.Add(amt)
	l.balances[accountID] = next
	return next, nil
}

func (l *inMemoryLedger) Debit(_ context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	amt, err := checkAmount(amount)
	if err != nil {
		return decimal.Decimal{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[accountID]
	if !ok {
		return decimal.Decimal{}, ErrNoAccount
	}
	if balance.LessThan(amt) {
		return decimal.Decimal{}, ErrInsufficientFunds
	}
	next := balance.Sub(amt)
	l.balances[accountID] = next
	return next, nil
}
