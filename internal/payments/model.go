package payments

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
)

// Transaction directions.
const (
	TypeDeposit    = "DEPOSIT"
	TypeWithdrawal = "WITHDRAWAL"
)

// Transaction lifecycle states.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusReversed   = "REVERSED"
)

// Payment methods.
const (
	MethodCard           = "CARD"
	MethodBankTransfer   = "BANK_TRANSFER"
	MethodDVA            = "DVA"
	MethodUSSD           = "USSD"
	MethodMobileMoney    = "MOBILE_MONEY"
	MethodGatewayBalance = "PAYSTACK_BALANCE"
)

// legalTransitions holds the allowed lifecycle edges. Anything else is
// rejected or ignored by the state-changing store methods.
var legalTransitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusSuccess, StatusFailed},
	StatusProcessing: {StatusSuccess, StatusFailed},
	StatusSuccess:    {StatusReversed},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transition except
// reversal of a successful withdrawal.
func Terminal(status string) bool {
	switch status {
	case StatusSuccess, StatusFailed, StatusReversed:
		return true
	}
	return false
}

// Transaction records one balance movement, deposit or withdrawal.
type Transaction struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"-"`
	Type             string          `json:"transaction_type"`
	Status           string          `json:"status"`
	Method           string          `json:"payment_method"`
	Amount           decimal.Decimal `json:"amount"`
	Fee              decimal.Decimal `json:"fee"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	Reference        string          `json:"reference"`
	GatewayTxID      string          `json:"gateway_transaction_id,omitempty"`
	GatewayReference string          `json:"gateway_reference,omitempty"`
	Description      string          `json:"description,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// Normalize quantizes the money fields to cents and recomputes the net amount
// as amount minus fee. Runs on every write.
func (t *Transaction) Normalize() {
	t.Amount = ledger.Quantize(t.Amount)
	t.Fee = ledger.Quantize(t.Fee)
	t.NetAmount = ledger.Quantize(t.Amount.Sub(t.Fee))
}

// NewReference issues a globally unique, time-ordered transaction reference.
func NewReference() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "TXN_" + strings.ToUpper(hex.EncodeToString(id[:]))
}

// VirtualAccount is a dedicated bank account number assigned to one account
// for inbound transfers.
type VirtualAccount struct {
	AccountID     string    `json:"-"`
	CustomerID    string    `json:"gateway_customer_id"`
	AccountNumber string    `json:"account_number"`
	BankName      string    `json:"bank_name"`
	BankSlug      string    `json:"bank_slug"`
	AccountName   string    `json:"account_name"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recipient is a saved payout destination.
type Recipient struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"-"`
	Code          string    `json:"recipient_code"`
	Type          string    `json:"recipient_type"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	BankCode      string    `json:"bank_code,omitempty"`
	BankName      string    `json:"bank_name,omitempty"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChargeEvent is the distilled form of an inbound charge.success delivery.
type ChargeEvent struct {
	AccountID string
	Reference string
	Amount    decimal.Decimal
	Channel   string
	GatewayID string
}

// Filter narrows a transaction history listing.
type Filter struct {
	Type   string
	Status string
	Method string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}
