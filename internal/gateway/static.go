package gateway

import (
	"context"

	"github.com/google/uuid"
)

// Static simulates a provider that approves every request. It backs local
// development and tests where no real provider is reachable.
type Static struct{}

// InitializeCharge approves the charge with a synthetic checkout URL.
func (Static) InitializeCharge(_ context.Context, req ChargeRequest) (ChargeAuthorization, error) {
	if !req.Amount.IsPositive() {
		return ChargeAuthorization{}, ErrInvalidAmount
	}
	reference := req.Reference
	if reference == "" {
		reference = uuid.NewString()
	}
	return ChargeAuthorization{
		AuthorizationURL: "https://checkout.invalid/" + reference,
		AccessCode:       "static_access",
		Reference:        reference,
	}, nil
}

// VerifyCharge reports every charge as successful.
func (Static) VerifyCharge(_ context.Context, reference string) (ChargeStatus, error) {
	return ChargeStatus{Reference: reference, Status: "success", Channel: "card"}, nil
}

// CreateCustomer issues a synthetic customer code.
func (Static) CreateCustomer(_ context.Context, _ CustomerRequest) (Customer, error) {
	return Customer{ID: 1, Code: "CUS_" + uuid.NewString()[:8]}, nil
}

// AssignVirtualAccount acknowledges the assignment without doing anything.
func (Static) AssignVirtualAccount(_ context.Context, _ VirtualAccountRequest) error {
	return nil
}

// CreateTransferRecipient issues a synthetic recipient code.
func (Static) CreateTransferRecipient(_ context.Context, req RecipientRequest) (Recipient, error) {
	return Recipient{Code: "RCP_" + uuid.NewString()[:8], BankName: req.BankCode}, nil
}

// CreateTransfer approves the payout immediately, no OTP step.
func (Static) CreateTransfer(_ context.Context, req TransferRequest) (Transfer, error) {
	if !req.Amount.IsPositive() {
		return Transfer{}, ErrInvalidAmount
	}
	return Transfer{
		ID:        1,
		Code:      "TRF_" + uuid.NewString()[:8],
		Reference: req.Reference,
		Status:    "pending",
	}, nil
}

// FinalizeTransfer approves the OTP without checking it.
func (Static) FinalizeTransfer(_ context.Context, transferCode, _ string) (Transfer, error) {
	return Transfer{ID: 1, Code: transferCode, Status: "success"}, nil
}

// ListBanks returns a fixed single-entry list.
func (Static) ListBanks(_ context.Context, _ string) ([]Bank, error) {
	return []Bank{{Name: "Static Bank", Slug: "static-bank", Code: "000"}}, nil
}
