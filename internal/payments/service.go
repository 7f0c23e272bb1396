package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/gateway"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
)

// ErrNotOwner indicates the transaction or recipient belongs to another account.
var ErrNotOwner = errors.New("payments: not owner")

// defaultDVABank is the provider bank virtual accounts are requested from.
const defaultDVABank = "wema-bank"

// Service drives deposits, withdrawals and payout destinations. Balance
// movements happen inside the store's boundaries; the service sequences them
// around gateway calls.
type Service struct {
	store   Store
	ledger  ledger.Ledger
	gateway gateway.Client
	logger  *slog.Logger
}

// NewService wires the payment service.
func NewService(store Store, l ledger.Ledger, gw gateway.Client, logger *slog.Logger) *Service {
	return &Service{store: store, ledger: l, gateway: gw, logger: logger}
}

// Balance returns the account's available balance.
func (s *Service) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.ledger.Balance(ctx, accountID)
}

// DepositInput carries a hosted-checkout deposit request.
type DepositInput struct {
	AccountID   string
	Email       string
	Amount      decimal.Decimal
	CallbackURL string
}

// Checkout is the handle the caller redirects to for payment.
type Checkout struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeDeposit opens a hosted checkout session and records the PENDING
// deposit. The gateway call comes first so a declined session leaves no row
// behind; the balance is only credited later by verification or webhook.
func (s *Service) InitializeDeposit(ctx context.Context, in DepositInput) (Checkout, error) {
	amount := ledger.Quantize(in.Amount)
	if !amount.IsPositive() {
		return Checkout{}, ledger.ErrInvalidAmount
	}

	reference := NewReference()
	auth, err := s.gateway.InitializeCharge(ctx, gateway.ChargeRequest{
		Email:       in.Email,
		Amount:      amount,
		Reference:   reference,
		CallbackURL: in.CallbackURL,
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("initialize charge: %w", err)
	}

	t := &Transaction{
		AccountID:        in.AccountID,
		Type:             TypeDeposit,
		Status:           StatusPending,
		Method:           MethodCard,
		Amount:           amount,
		Reference:        reference,
		GatewayReference: auth.Reference,
		Description:      "Card deposit",
	}
	if err := s.store.Create(ctx, t); err != nil {
		return Checkout{}, fmt.Errorf("record deposit: %w", err)
	}
	return Checkout{
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Reference:        auth.Reference,
	}, nil
}

// VerifyDeposit confirms a deposit against the gateway on demand. A PENDING
// deposit the gateway reports successful is completed and credited with the
// gateway-confirmed amount; every other state is returned untouched.
func (s *Service) VerifyDeposit(ctx context.Context, accountID, reference string) (Transaction, error) {
	t, err := s.store.ByReference(ctx, reference)
	if err != nil {
		return Transaction{}, err
	}
	if t.AccountID != accountID {
		return Transaction{}, ErrNotFound
	}

	status, err := s.gateway.VerifyCharge(ctx, reference)
	if err != nil {
		return Transaction{}, fmt.Errorf("verify charge: %w", err)
	}
	if status.Status != "success" {
		return t, nil
	}

	updated, applied, err := s.store.CompleteDeposit(ctx, reference, status.Amount, strconv.FormatInt(status.GatewayID, 10))
	if err != nil {
		return Transaction{}, err
	}
	if applied {
		s.logger.Info("deposit verified", "reference", reference, "amount", status.Amount.StringFixed(2))
	}
	return updated, nil
}

// WithdrawInput carries a withdrawal request against a saved recipient.
type WithdrawInput struct {
	AccountID     string
	RecipientCode string
	Amount        decimal.Decimal
	Reason        string
}

// RequestWithdrawal debits the balance, records the withdrawal and asks the
// gateway to pay out. The debit commits before the gateway call; when the
// gateway declines, Fail re-credits through its own boundary so a racing
// webhook cannot double-refund.
func (s *Service) RequestWithdrawal(ctx context.Context, in WithdrawInput) (Transaction, error) {
	amount := ledger.Quantize(in.Amount)
	if !amount.IsPositive() {
		return Transaction{}, ledger.ErrInvalidAmount
	}

	recipient, err := s.store.RecipientByCode(ctx, in.RecipientCode)
	if err != nil {
		return Transaction{}, err
	}
	if recipient.AccountID != in.AccountID {
		return Transaction{}, ErrRecipientNotFound
	}

	reference := NewReference()
	t := &Transaction{
		AccountID:   in.AccountID,
		Type:        TypeWithdrawal,
		Status:      StatusPending,
		Method:      MethodGatewayBalance,
		Amount:      amount,
		Reference:   reference,
		Description: "Transfer to " + recipient.Code,
	}
	if err := s.store.CreateWithdrawal(ctx, t); err != nil {
		return Transaction{}, err
	}

	reason := in.Reason
	if reason == "" {
		reason = "Withdrawal"
	}
	transfer, err := s.gateway.CreateTransfer(ctx, gateway.TransferRequest{
		Amount:    amount,
		Recipient: recipient.Code,
		Reason:    reason,
		Reference: reference,
	})
	if err != nil {
		failed, _, ferr := s.store.Fail(ctx, reference, err.Error())
		if ferr != nil {
			s.logger.Error("withdrawal compensation failed", "reference", reference, "error", ferr)
			return Transaction{}, fmt.Errorf("create transfer: %w", err)
		}
		s.logger.Warn("withdrawal declined by gateway", "reference", reference, "error", err)
		if errors.Is(err, gateway.ErrRejected) {
			return failed, err
		}
		return failed, fmt.Errorf("create transfer: %w", err)
	}

	if transfer.OTPRequired {
		return s.store.MarkProcessing(ctx, reference, transfer.Code)
	}
	updated, _, err := s.store.Complete(ctx, reference, transfer.Code)
	return updated, err
}

// FinalizeWithdrawal submits the OTP for a transfer awaiting one and completes
// the withdrawal.
func (s *Service) FinalizeWithdrawal(ctx context.Context, accountID, transferCode, otp string) (Transaction, error) {
	transfer, err := s.gateway.FinalizeTransfer(ctx, transferCode, otp)
	if err != nil {
		return Transaction{}, fmt.Errorf("finalize transfer: %w", err)
	}

	t, err := s.store.ByReference(ctx, transfer.Reference)
	if err != nil {
		return Transaction{}, err
	}
	if t.AccountID != accountID {
		return Transaction{}, ErrNotFound
	}
	updated, _, err := s.store.Complete(ctx, transfer.Reference, transfer.Code)
	return updated, err
}

// Transaction returns one of the account's transactions by reference.
func (s *Service) Transaction(ctx context.Context, accountID, reference string) (Transaction, error) {
	t, err := s.store.ByReference(ctx, reference)
	if err != nil {
		return Transaction{}, err
	}
	if t.AccountID != accountID {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

// Transactions lists the account's history through the filter.
func (s *Service) Transactions(ctx context.Context, accountID string, f Filter) ([]Transaction, error) {
	return s.store.List(ctx, accountID, f)
}

// RequestVirtualAccount asks the gateway to assign a dedicated account number.
// Assignment completes asynchronously; the webhook stores the account details
// when they arrive. Returns the existing virtual account when one is already
// assigned, with ready=true.
func (s *Service) RequestVirtualAccount(ctx context.Context, user identity.User) (VirtualAccount, bool, error) {
	if existing, err := s.store.VirtualAccount(ctx, user.ID); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, ErrNoVirtualAccount) {
		return VirtualAccount{}, false, err
	}

	first, last := splitName(user.FullName)
	customer, err := s.gateway.CreateCustomer(ctx, gateway.CustomerRequest{
		Email:     user.Email,
		FirstName: first,
		LastName:  last,
		Phone:     user.Phone,
	})
	if err != nil {
		return VirtualAccount{}, false, fmt.Errorf("create customer: %w", err)
	}

	err = s.gateway.AssignVirtualAccount(ctx, gateway.VirtualAccountRequest{
		CustomerCode:  customer.Code,
		Email:         user.Email,
		PreferredBank: defaultDVABank,
		FirstName:     first,
		LastName:      last,
		Phone:         user.Phone,
	})
	if err != nil {
		return VirtualAccount{}, false, fmt.Errorf("assign virtual account: %w", err)
	}
	return VirtualAccount{}, false, nil
}

// VirtualAccount returns the account's assigned virtual account.
func (s *Service) VirtualAccount(ctx context.Context, accountID string) (VirtualAccount, error) {
	return s.store.VirtualAccount(ctx, accountID)
}

// RecipientInput carries the bank details for a new payout destination.
type RecipientInput struct {
	Type          string
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

// AddRecipient registers the bank details with the gateway and saves the
// returned recipient code.
func (s *Service) AddRecipient(ctx context.Context, accountID string, in RecipientInput) (Recipient, error) {
	kind := in.Type
	if kind == "" {
		kind = "nuban"
	}
	created, err := s.gateway.CreateTransferRecipient(ctx, gateway.RecipientRequest{
		Type:          kind,
		Name:          in.Name,
		AccountNumber: in.AccountNumber,
		BankCode:      in.BankCode,
		Currency:      in.Currency,
	})
	if err != nil {
		return Recipient{}, fmt.Errorf("create transfer recipient: %w", err)
	}

	r := &Recipient{
		AccountID:     accountID,
		Code:          created.Code,
		Type:          kind,
		Name:          in.Name,
		AccountNumber: in.AccountNumber,
		BankCode:      in.BankCode,
		BankName:      created.BankName,
		Currency:      in.Currency,
	}
	if err := s.store.CreateRecipient(ctx, r); err != nil {
		return Recipient{}, err
	}
	return *r, nil
}

// Recipients lists the account's saved payout destinations.
func (s *Service) Recipients(ctx context.Context, accountID string) ([]Recipient, error) {
	return s.store.ListRecipients(ctx, accountID)
}

// Banks lists the banks supported for payouts.
func (s *Service) Banks(ctx context.Context, country string) ([]gateway.Bank, error) {
	return s.gateway.ListBanks(ctx, country)
}

func splitName(full string) (first, last string) {
	first, last, found := strings.Cut(strings.TrimSpace(full), " ")
	if !found {
		return first, first
	}
	return first, last
}
