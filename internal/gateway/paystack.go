package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const requestTimeout = 30 * time.Second

// Paystack talks to the Paystack REST API over HTTPS.
type Paystack struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPaystack builds a client for the given API origin. An empty baseURL
// selects the production origin.
func NewPaystack(baseURL, secretKey string, logger *slog.Logger) *Paystack {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &Paystack{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// envelope is the uniform wrapper around every Paystack response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Paystack) call(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("payment provider request failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, path)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		p.logger.Error("payment provider sent malformed payload",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, path)
	}
	if !env.Status {
		p.logger.Error("payment provider rejected request",
			slog.String("path", path),
			slog.String("message", env.Message))
		return nil, fmt.Errorf("%w: %s", ErrRejected, env.Message)
	}
	return env.Data, nil
}

// InitializeCharge opens a hosted checkout session for the customer.
func (p *Paystack) InitializeCharge(ctx context.Context, req ChargeRequest) (ChargeAuthorization, error) {
	if !req.Amount.IsPositive() {
		return ChargeAuthorization{}, ErrInvalidAmount
	}

	payload := struct {
		Email       string         `json:"email"`
		Amount      int64          `json:"amount"`
		Reference   string         `json:"reference,omitempty"`
		CallbackURL string         `json:"callback_url,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{req.Email, toMinorUnits(req.Amount), req.Reference, req.CallbackURL, req.Metadata}

	data, err := p.call(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return ChargeAuthorization{}, err
	}

	var out struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return ChargeAuthorization{}, fmt.Errorf("%w: decode initialize response", ErrUnavailable)
	}
	return ChargeAuthorization{
		AuthorizationURL: out.AuthorizationURL,
		AccessCode:       out.AccessCode,
		Reference:        out.Reference,
	}, nil
}

// VerifyCharge fetches the provider's current view of a charge by reference.
func (p *Paystack) VerifyCharge(ctx context.Context, reference string) (ChargeStatus, error) {
	data, err := p.call(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return ChargeStatus{}, err
	}

	var out struct {
		ID              int64  `json:"id"`
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		Amount          int64  `json:"amount"`
		GatewayResponse string `json:"gateway_response"`
		Channel         string `json:"channel"`
		PaidAt          string `json:"paid_at"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return ChargeStatus{}, fmt.Errorf("%w: decode verify response", ErrUnavailable)
	}
	return ChargeStatus{
		GatewayID:       out.ID,
		Reference:       out.Reference,
		Status:          out.Status,
		Amount:          FromMinorUnits(out.Amount),
		GatewayResponse: out.GatewayResponse,
		Channel:         out.Channel,
		PaidAt:          out.PaidAt,
	}, nil
}

// CreateCustomer registers the customer with the provider.
func (p *Paystack) CreateCustomer(ctx context.Context, req CustomerRequest) (Customer, error) {
	payload := struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name,omitempty"`
		LastName  string `json:"last_name,omitempty"`
		Phone     string `json:"phone,omitempty"`
	}{req.Email, req.FirstName, req.LastName, req.Phone}

	data, err := p.call(ctx, http.MethodPost, "/customer", payload)
	if err != nil {
		return Customer{}, err
	}

	var out struct {
		ID           int64  `json:"id"`
		CustomerCode string `json:"customer_code"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Customer{}, fmt.Errorf("%w: decode customer response", ErrUnavailable)
	}
	return Customer{ID: out.ID, Code: out.CustomerCode}, nil
}

// AssignVirtualAccount requests a dedicated virtual account for the customer.
// The account details arrive later on the webhook, so only the acknowledgement
// matters here.
func (p *Paystack) AssignVirtualAccount(ctx context.Context, req VirtualAccountRequest) error {
	payload := struct {
		Customer      string `json:"customer"`
		Email         string `json:"email,omitempty"`
		PreferredBank string `json:"preferred_bank,omitempty"`
		FirstName     string `json:"first_name,omitempty"`
		LastName      string `json:"last_name,omitempty"`
		Phone         string `json:"phone,omitempty"`
	}{req.CustomerCode, req.Email, req.PreferredBank, req.FirstName, req.LastName, req.Phone}

	_, err := p.call(ctx, http.MethodPost, "/dedicated_account/assign", payload)
	return err
}

// CreateTransferRecipient registers a payout destination and returns its code.
func (p *Paystack) CreateTransferRecipient(ctx context.Context, req RecipientRequest) (Recipient, error) {
	currency := req.Currency
	if currency == "" {
		currency = "NGN"
	}
	payload := struct {
		Type          string `json:"type"`
		Name          string `json:"name"`
		AccountNumber string `json:"account_number"`
		Currency      string `json:"currency"`
		BankCode      string `json:"bank_code,omitempty"`
	}{req.Type, req.Name, req.AccountNumber, currency, req.BankCode}

	data, err := p.call(ctx, http.MethodPost, "/transferrecipient", payload)
	if err != nil {
		return Recipient{}, err
	}

	var out struct {
		RecipientCode string `json:"recipient_code"`
		Details       struct {
			BankName string `json:"bank_name"`
		} `json:"details"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Recipient{}, fmt.Errorf("%w: decode recipient response", ErrUnavailable)
	}
	return Recipient{Code: out.RecipientCode, BankName: out.Details.BankName}, nil
}

// CreateTransfer starts a payout to a recipient. A status of "otp" means the
// provider wants the transfer finalized with a one-time password first.
func (p *Paystack) CreateTransfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	if !req.Amount.IsPositive() {
		return Transfer{}, ErrInvalidAmount
	}

	source := req.Source
	if source == "" {
		source = "balance"
	}
	currency := req.Currency
	if currency == "" {
		currency = "NGN"
	}
	payload := struct {
		Source    string `json:"source"`
		Amount    int64  `json:"amount"`
		Recipient string `json:"recipient"`
		Currency  string `json:"currency"`
		Reason    string `json:"reason,omitempty"`
		Reference string `json:"reference,omitempty"`
	}{source, toMinorUnits(req.Amount), req.Recipient, currency, req.Reason, req.Reference}

	data, err := p.call(ctx, http.MethodPost, "/transfer", payload)
	if err != nil {
		return Transfer{}, err
	}
	return decodeTransfer(data)
}

// FinalizeTransfer completes an OTP-gated transfer.
func (p *Paystack) FinalizeTransfer(ctx context.Context, transferCode, otp string) (Transfer, error) {
	payload := struct {
		TransferCode string `json:"transfer_code"`
		OTP          string `json:"otp"`
	}{transferCode, otp}

	data, err := p.call(ctx, http.MethodPost, "/transfer/finalize_transfer", payload)
	if err != nil {
		return Transfer{}, err
	}
	return decodeTransfer(data)
}

// ListBanks returns the provider's supported banks for a country.
func (p *Paystack) ListBanks(ctx context.Context, country string) ([]Bank, error) {
	if country == "" {
		country = "nigeria"
	}
	data, err := p.call(ctx, http.MethodGet, "/bank?country="+url.QueryEscape(country), nil)
	if err != nil {
		return nil, err
	}

	var out []struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode bank list", ErrUnavailable)
	}
	banks := make([]Bank, 0, len(out))
	for _, b := range out {
		banks = append(banks, Bank{Name: b.Name, Slug: b.Slug, Code: b.Code})
	}
	return banks, nil
}

func decodeTransfer(data json.RawMessage) (Transfer, error) {
	var out struct {
		ID           int64  `json:"id"`
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
		Status       string `json:"status"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Transfer{}, fmt.Errorf("%w: decode transfer response", ErrUnavailable)
	}
	return Transfer{
		ID:          out.ID,
		Code:        out.TransferCode,
		Reference:   out.Reference,
		Status:      out.Status,
		OTPRequired: out.Status == "otp",
	}, nil
}
