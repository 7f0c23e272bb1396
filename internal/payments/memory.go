package payments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/notification"
)

// MemoryStore keeps transactions in process memory with the same boundary
// semantics as the Postgres store. Useful for tests and the dev server.
type MemoryStore struct {
	mu            sync.Mutex
	ledger        ledger.Ledger
	notifications notification.Store
	byReference   map[string]*Transaction
	byGatewayRef  map[string]string
	virtualAccts  map[string]VirtualAccount
	recipients    map[string]Recipient
}

// NewMemoryStore builds an empty in-memory store writing balance changes to l
// and notifications to n.
func NewMemoryStore(l ledger.Ledger, n notification.Store) *MemoryStore {
	return &MemoryStore{
		ledger:        l,
		notifications: n,
		byReference:   map[string]*Transaction{},
		byGatewayRef:  map[string]string{},
		virtualAccts:  map[string]VirtualAccount{},
		recipients:    map[string]Recipient{},
	}
}

func (s *MemoryStore) Create(ctx context.Context, t *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(t)
}

func (s *MemoryStore) CreateWithdrawal(ctx context.Context, t *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byReference[t.Reference]; ok {
		return ErrDuplicateReference
	}
	if _, err := s.ledger.Debit(ctx, t.AccountID, t.Amount); err != nil {
		return err
	}
	return s.insert(t)
}

func (s *MemoryStore) ByReference(ctx context.Context, reference string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byReference[reference]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return *t, nil
}

func (s *MemoryStore) List(ctx context.Context, accountID string, f Filter) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []Transaction
	for _, t := range s.byReference {
		if t.AccountID != accountID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Method != "" && t.Method != f.Method {
			continue
		}
		if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && t.CreatedAt.After(f.To) {
			continue
		}
		items = append(items, *t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(items) {
			return nil, nil
		}
		items = items[f.Offset:]
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *MemoryStore) SettleCharge(ctx context.Context, ev ChargeEvent) (Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.byGatewayRef[ev.Reference]; ok {
		return *s.byReference[ref], false, nil
	}

	now := time.Now().UTC()
	method := MethodBankTransfer
	if ev.Channel == "dedicated_nuban" {
		method = MethodDVA
	}
	t := &Transaction{
		ID:               uuid.NewString(),
		AccountID:        ev.AccountID,
		Type:             TypeDeposit,
		Status:           StatusSuccess,
		Method:           method,
		Amount:           ev.Amount,
		Reference:        ev.Reference,
		GatewayTxID:      ev.GatewayID,
		GatewayReference: ev.Reference,
		Description:      "Deposit via " + ev.Channel,
		CreatedAt:        now,
		CompletedAt:      &now,
	}
	if err := s.insert(t); err != nil {
		return Transaction{}, false, err
	}
	if _, err := s.ledger.Credit(ctx, ev.AccountID, t.Amount); err != nil {
		return Transaction{}, false, err
	}

	n := notification.New(ev.AccountID, notification.KindDepositReceived,
		"Deposit Received", "You received ₦"+t.Amount.StringFixed(2)+" via "+ev.Channel)
	n.RelatedTransactionID = t.ID
	if err := s.notifications.Add(ctx, n); err != nil {
		return Transaction{}, false, err
	}
	return *t, true, nil
}

func (s *MemoryStore) CompleteDeposit(ctx context.Context, reference string, amount decimal.Decimal, gatewayID string) (Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byReference[reference]
	if !ok {
		return Transaction{}, false, ErrNotFound
	}
	if t.Status != StatusPending {
		return *t, false, nil
	}

	now := time.Now().UTC()
	t.Status = StatusSuccess
	t.CompletedAt = &now
	if gatewayID != "" {
		t.GatewayTxID = gatewayID
	}

	credit := ledger.Quantize(amount)
	if !credit.IsPositive() {
		// Simulated gateways report no amount; credit what was recorded.
		credit = t.Amount
	}
	if _, err := s.ledger.Credit(ctx, t.AccountID, credit); err != nil {
		return Transaction{}, false, err
	}

	n := notification.New(t.AccountID, notification.KindDepositReceived,
		"Payment Received", "You received ₦"+credit.StringFixed(2))
	n.RelatedTransactionID = t.ID
	if err := s.notifications.Add(ctx, n); err != nil {
		return Transaction{}, false, err
	}
	return *t, true, nil
}

func (s *MemoryStore) MarkProcessing(ctx context.Context, reference, transferCode string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byReference[reference]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if t.Status != StatusPending {
		return Transaction{}, ErrStateConflict
	}

	t.Status = StatusProcessing
	if transferCode != "" {
		t.GatewayTxID = transferCode
	}

	n := notification.New(t.AccountID, notification.KindTransferPending,
		"Transfer Initiated", "Your transfer of ₦"+t.Amount.StringFixed(2)+" requires OTP verification")
	n.RelatedTransactionID = t.ID
	if err := s.notifications.Add(ctx, n); err != nil {
		return Transaction{}, err
	}
	return *t, nil
}

func (s *MemoryStore) Complete(ctx context.Context, reference, transferCode string) (Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byReference[reference]
	if !ok {
		return Transaction{}, false, ErrNotFound
	}
	if Terminal(t.Status) {
		return *t, false, nil
	}

	now := time.Now().UTC()
	t.Status = StatusSuccess
	t.CompletedAt = &now
	if transferCode != "" {
		t.GatewayTxID = transferCode
	}

	n := notification.New(t.AccountID, notification.KindWithdrawalSuccess,
		"Withdrawal Successful", "Your withdrawal of ₦"+t.Amount.StringFixed(2)+" was successful")
	n.RelatedTransactionID = t.ID
	if err := s.notifications.Add(ctx, n); err != nil {
		return Transaction{}, false, err
	}
	return *t, true, nil
}

func (s *MemoryStore) Fail(ctx context.Context, reference, reason string) (Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byReference[reference]
	if !ok {
		return Transaction{}, false, ErrNotFound
	}
	if Terminal(t.Status) {
		return *t, false, nil
	}
	refund := t.Type == TypeWithdrawal && t.Status == StatusPending

	now := time.Now().UTC()
	t.Status = StatusFailed
	t.CompletedAt = &now
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	t.Metadata["failure_reason"] = reason

	if refund {
		if _, err := s.ledger.Credit(ctx, t.AccountID, t.Amount); err != nil {
			return Transaction{}, false, err
		}
	}

	n := notification.New(t.AccountID, notification.KindWithdrawalFailed,
		"Withdrawal Failed", "Your withdrawal of ₦"+t.Amount.StringFixed(2)+" failed: "+reason)
	n.RelatedTransactionID = t.ID
	if err := s.notifications.Add(ctx, n); err != nil {
		return Transaction{}, false, err
	}
	return *t, true, nil
}

func (s *MemoryStore) Reverse(ctx context.Context, reference string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byReference[reference]
	if !ok {
		return Transaction{}, ErrNotFound
	}

	now := time.Now().UTC()
	t.Status = StatusReversed
	t.CompletedAt = &now
	if _, err := s.ledger.Credit(ctx, t.AccountID, t.Amount); err != nil {
		return Transaction{}, err
	}

	n := notification.New(t.AccountID, notification.KindWithdrawalReversed,
		"Withdrawal Reversed", "Your withdrawal of ₦"+t.Amount.StringFixed(2)+" was reversed")
	n.RelatedTransactionID = t.ID
	if err := s.notifications.Add(ctx, n); err != nil {
		return Transaction{}, err
	}
	return *t, nil
}

func (s *MemoryStore) UpsertVirtualAccount(ctx context.Context, va *VirtualAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if va.Currency == "" {
		va.Currency = "NGN"
	}
	if va.CreatedAt.IsZero() {
		va.CreatedAt = time.Now().UTC()
	}
	s.virtualAccts[va.AccountID] = *va

	n := notification.New(va.AccountID, notification.KindDVACreated,
		"Dedicated Account Created",
		"Your dedicated account "+va.AccountNumber+" has been created at "+va.BankName)
	return s.notifications.Add(ctx, n)
}

func (s *MemoryStore) VirtualAccount(ctx context.Context, accountID string) (VirtualAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	va, ok := s.virtualAccts[accountID]
	if !ok {
		return VirtualAccount{}, ErrNoVirtualAccount
	}
	return va, nil
}

func (s *MemoryStore) CreateRecipient(ctx context.Context, r *Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipients[r.Code]; ok {
		return ErrRecipientExists
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Currency == "" {
		r.Currency = "NGN"
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.recipients[r.Code] = *r
	return nil
}

func (s *MemoryStore) RecipientByCode(ctx context.Context, code string) (Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipients[code]
	if !ok {
		return Recipient{}, ErrRecipientNotFound
	}
	return r, nil
}

func (s *MemoryStore) ListRecipients(ctx context.Context, accountID string) ([]Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []Recipient
	for _, r := range s.recipients {
		if r.AccountID == accountID {
			items = append(items, r)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// insert assumes the caller holds the lock.
func (s *MemoryStore) insert(t *Transaction) error {
	t.Normalize()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if _, ok := s.byReference[t.Reference]; ok {
		return ErrDuplicateReference
	}
	if t.GatewayReference != "" {
		if _, ok := s.byGatewayRef[t.GatewayReference]; ok {
			return ErrDuplicateReference
		}
		s.byGatewayRef[t.GatewayReference] = t.Reference
	}
	cp := *t
	s.byReference[t.Reference] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
