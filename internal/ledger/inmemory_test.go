package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInMemoryLedger_CreditAndDebit(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if err := l.EnsureAccount(ctx, "acct-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	balance, err := l.Credit(ctx, "acct-1", decimal.RequireFromString("150.555"))
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	// amounts are quantized to cents before applying
	if !balance.Equal(decimal.RequireFromString("150.56")) {
		t.Fatalf("expected balance 150.56, got %s", balance)
	}

	balance, err = l.Debit(ctx, "acct-1", decimal.RequireFromString("50.56"))
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected balance 100.00, got %s", balance)
	}
}

func TestInMemoryLedger_DebitInsufficient(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "acct-1")
	SeedBalance(l, "acct-1", decimal.RequireFromString("20.00"))

	if _, err := l.Debit(ctx, "acct-1", decimal.RequireFromString("20.01")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balance, err := l.Balance(ctx, "acct-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("failed debit must not change balance, got %s", balance)
	}
}

func TestInMemoryLedger_UnknownAccount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if _, err := l.Credit(ctx, "ghost", decimal.NewFromInt(10)); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount on credit, got %v", err)
	}
	if _, err := l.Debit(ctx, "ghost", decimal.NewFromInt(10)); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount on debit, got %v", err)
	}
	if _, err := l.Balance(ctx, "ghost"); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount on balance, got %v", err)
	}
}

func TestInMemoryLedger_InvalidAmount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "acct-1")

	if _, err := l.Credit(ctx, "acct-1", decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero credit, got %v", err)
	}
	if _, err := l.Debit(ctx, "acct-1", decimal.NewFromInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative debit, got %v", err)
	}
}

// Two concurrent debits of 80 against a balance of 100: exactly one may win.
func TestInMemoryLedger_ConcurrentDebitsSingleWinner(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "acct-1")
	SeedBalance(l, "acct-1", decimal.RequireFromString("100.00"))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = l.Debit(ctx, "acct-1", decimal.RequireFromString("80.00"))
		}(i)
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if successes != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d refusals", successes, insufficient)
	}

	balance, err := l.Balance(ctx, "acct-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected balance 20.00 after single debit, got %s", balance)
	}
}

// Sequential drain down to 20.00, then concurrent debits of 80 and 30: neither
// amount is covered, so both must be refused and the balance left untouched.
func TestInMemoryLedger_ConcurrentDebitsAgainstDrainedBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "acct-1")
	SeedBalance(l, "acct-1", decimal.RequireFromString("100.00"))

	if _, err := l.Debit(ctx, "acct-1", decimal.RequireFromString("80.00")); err != nil {
		t.Fatalf("initial debit failed: %v", err)
	}

	amounts := []string{"80.00", "30.00"}
	results := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i, raw := range amounts {
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()
			_, results[i] = l.Debit(ctx, "acct-1", decimal.RequireFromString(raw))
		}(i, raw)
	}
	wg.Wait()

	for i, err := range results {
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("debit %s: expected insufficient funds, got %v", amounts[i], err)
		}
	}

	balance, _ := l.Balance(ctx, "acct-1")
	if !balance.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected balance to stay at 20.00, got %s", balance)
	}
}

// Replay check: after a storm of concurrent credits and debits the balance
// equals the arithmetic sum of the operations that reported success, and it
// never went negative along the way.
func TestInMemoryLedger_ConcurrentMixedOpsReplay(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "acct-1")
	SeedBalance(l, "acct-1", decimal.RequireFromString("1000.00"))

	const workers = 16
	credit := decimal.RequireFromString("5.00")
	debit := decimal.RequireFromString("117.00")

	var mu sync.Mutex
	applied := decimal.RequireFromString("1000.00")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				if _, err := l.Credit(ctx, "acct-1", credit); err == nil {
					mu.Lock()
					applied = applied.Add(credit)
					mu.Unlock()
				}
				return
			}
			if _, err := l.Debit(ctx, "acct-1", debit); err == nil {
				mu.Lock()
				applied = applied.Sub(debit)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	balance, err := l.Balance(ctx, "acct-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.IsNegative() {
		t.Fatalf("balance went negative: %s", balance)
	}
	if !balance.Equal(applied) {
		t.Fatalf("balance %s diverged from applied operations sum %s", balance, applied)
	}
}
