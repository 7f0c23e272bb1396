package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned before any network call when the amount is not positive.
	ErrInvalidAmount = errors.New("gateway: amount must be greater than zero")
	// ErrRejected is returned when the provider answered but declined the request.
	ErrRejected = errors.New("gateway: request rejected")
	// ErrUnavailable is returned on timeouts, transport failures and unparseable payloads.
	ErrUnavailable = errors.New("gateway: provider unavailable")
)

// Client represents a connector to the external payment provider.
type Client interface {
	InitializeCharge(ctx context.Context, req ChargeRequest) (ChargeAuthorization, error)
	VerifyCharge(ctx context.Context, reference string) (ChargeStatus, error)
	CreateCustomer(ctx context.Context, req CustomerRequest) (Customer, error)
	AssignVirtualAccount(ctx context.Context, req VirtualAccountRequest) error
	CreateTransferRecipient(ctx context.Context, req RecipientRequest) (Recipient, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (Transfer, error)
	FinalizeTransfer(ctx context.Context, transferCode, otp string) (Transfer, error)
	ListBanks(ctx context.Context, country string) ([]Bank, error)
}

// ChargeRequest encapsulates details needed to open a hosted checkout session.
type ChargeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

// ChargeAuthorization is the provider's handle to a newly initialized charge.
type ChargeAuthorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// ChargeStatus captures the provider's view of a charge when verified on demand.
type ChargeStatus struct {
	GatewayID       int64
	Reference       string
	Status          string
	Amount          decimal.Decimal
	GatewayResponse string
	Channel         string
	PaidAt          string
}

// CustomerRequest carries the fields used to register a customer with the provider.
type CustomerRequest struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// Customer is the provider-side customer record.
type Customer struct {
	ID   int64
	Code string
}

// VirtualAccountRequest asks the provider to assign a dedicated virtual account.
// The assignment completes asynchronously via webhook.
type VirtualAccountRequest struct {
	CustomerCode  string
	Email         string
	PreferredBank string
	FirstName     string
	LastName      string
	Phone         string
}

// RecipientRequest carries the bank details for a payout destination.
type RecipientRequest struct {
	Type          string
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

// Recipient is the provider-side payout destination record.
type Recipient struct {
	Code     string
	BankName string
}

// TransferRequest asks the provider to move money to a previously created recipient.
type TransferRequest struct {
	Source    string
	Amount    decimal.Decimal
	Recipient string
	Reason    string
	Reference string
	Currency  string
}

// Transfer captures the provider's response to a transfer creation or finalization.
type Transfer struct {
	ID          int64
	Code        string
	Reference   string
	Status      string
	OTPRequired bool
}

// Bank is one entry of the provider's supported bank list.
type Bank struct {
	Name string
	Slug string
	Code string
}

var minorUnitsPerMajor = decimal.NewFromInt(100)

// toMinorUnits converts a major-unit amount to the provider's integer subunit.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitsPerMajor).IntPart()
}

// FromMinorUnits converts a provider subunit amount back to major units.
func FromMinorUnits(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Div(minorUnitsPerMajor)
}
