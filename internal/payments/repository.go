package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates no transaction matches the reference.
	ErrNotFound = errors.New("payments: transaction not found")
	// ErrDuplicateReference indicates the reference is already taken.
	ErrDuplicateReference = errors.New("payments: reference already exists")
	// ErrStateConflict indicates the requested lifecycle transition is illegal.
	ErrStateConflict = errors.New("payments: illegal status transition")
	// ErrRecipientNotFound indicates the payout destination does not exist.
	ErrRecipientNotFound = errors.New("payments: recipient not found")
	// ErrRecipientExists indicates the gateway recipient code is already saved.
	ErrRecipientExists = errors.New("payments: recipient already exists")
	// ErrNoVirtualAccount indicates the account has no virtual account yet.
	ErrNoVirtualAccount = errors.New("payments: virtual account not found")
)

// Store persists transactions and applies the money-moving composites. Every
// composite method is one atomicity boundary: the balance change, the
// transaction write and the notification land together or not at all.
type Store interface {
	Create(ctx context.Context, t *Transaction) error
	// CreateWithdrawal debits the ledger and inserts the PENDING withdrawal in
	// one boundary. The debit guard is the only balance check that counts.
	CreateWithdrawal(ctx context.Context, t *Transaction) error
	ByReference(ctx context.Context, reference string) (Transaction, error)
	List(ctx context.Context, accountID string, f Filter) ([]Transaction, error)

	// SettleCharge records an inbound charge exactly once, keyed by gateway
	// reference. Returns created=false when the reference was already settled;
	// the credit and notification fire only on creation.
	SettleCharge(ctx context.Context, ev ChargeEvent) (Transaction, bool, error)
	// CompleteDeposit moves a PENDING deposit to SUCCESS and credits the
	// ledger with the gateway-confirmed amount. A deposit in any other state
	// is returned untouched with applied=false.
	CompleteDeposit(ctx context.Context, reference string, amount decimal.Decimal, gatewayID string) (Transaction, bool, error)
	// MarkProcessing moves a PENDING withdrawal to PROCESSING for the OTP leg.
	MarkProcessing(ctx context.Context, reference, transferCode string) (Transaction, error)
	// Complete moves a non-terminal transaction to SUCCESS. Terminal
	// transactions are returned untouched with applied=false.
	Complete(ctx context.Context, reference, transferCode string) (Transaction, bool, error)
	// Fail moves a non-terminal transaction to FAILED, re-crediting the ledger
	// only when the prior status was PENDING (the pre-debited case). Terminal
	// transactions are returned untouched with applied=false.
	Fail(ctx context.Context, reference, reason string) (Transaction, bool, error)
	// Reverse credits the ledger for the transaction amount and marks REVERSED.
	Reverse(ctx context.Context, reference string) (Transaction, error)

	UpsertVirtualAccount(ctx context.Context, va *VirtualAccount) error
	VirtualAccount(ctx context.Context, accountID string) (VirtualAccount, error)

	CreateRecipient(ctx context.Context, r *Recipient) error
	RecipientByCode(ctx context.Context, code string) (Recipient, error)
	ListRecipients(ctx context.Context, accountID string) ([]Recipient, error)
}
