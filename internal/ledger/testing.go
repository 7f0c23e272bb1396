package ledger

import "github.com/shopspring/decimal"

// SeedBalance force-sets an in-memory account balance, creating the account if
// needed. Test helper; it has no effect on other implementations.
func SeedBalance(l Ledger, accountID string, amount decimal.Decimal) {
	m, ok := l.(*inMemoryLedger)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] = Quantize(amount)
}
