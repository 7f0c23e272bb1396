package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/logging"
)

func TestPaystack_InitializeCharge(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"TXN_1"}}`))
	}))
	defer srv.Close()

	client := NewPaystack(srv.URL, "sk_test_key", logging.Discard())
	auth, err := client.InitializeCharge(context.Background(), ChargeRequest{
		Email:     "ada@example.com",
		Amount:    decimal.RequireFromString("1500.50"),
		Reference: "TXN_1",
	})
	if err != nil {
		t.Fatalf("initialize charge: %v", err)
	}

	if gotPath != "/transaction/initialize" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer sk_test_key" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	// 1500.50 NGN = 150050 kobo
	if amount, ok := gotBody["amount"].(float64); !ok || amount != 150050 {
		t.Fatalf("expected amount 150050 in minor units, got %v", gotBody["amount"])
	}
	if auth.AuthorizationURL != "https://checkout.paystack.com/abc" {
		t.Fatalf("unexpected authorization url %q", auth.AuthorizationURL)
	}
	if auth.Reference != "TXN_1" {
		t.Fatalf("unexpected reference %q", auth.Reference)
	}
}

func TestPaystack_InitializeCharge_RejectsNonPositiveAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the provider for an invalid amount")
	}))
	defer srv.Close()

	client := NewPaystack(srv.URL, "sk_test_key", logging.Discard())
	_, err := client.InitializeCharge(context.Background(), ChargeRequest{Email: "ada@example.com", Amount: decimal.Zero})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestPaystack_VerifyCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/TXN_9" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"id":4099260516,"status":"success","reference":"TXN_9","amount":20000,"gateway_response":"Successful","channel":"card","paid_at":"2024-08-22T09:15:02.000Z"}}`))
	}))
	defer srv.Close()

	client := NewPaystack(srv.URL, "sk_test_key", logging.Discard())
	status, err := client.VerifyCharge(context.Background(), "TXN_9")
	if err != nil {
		t.Fatalf("verify charge: %v", err)
	}
	if status.Status != "success" {
		t.Fatalf("unexpected status %q", status.Status)
	}
	if !status.Amount.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("expected 200.00 from 20000 kobo, got %s", status.Amount)
	}
	if status.GatewayID != 4099260516 {
		t.Fatalf("unexpected gateway id %d", status.GatewayID)
	}
}

func TestPaystack_CreateTransfer_OTPRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"Transfer requires OTP to continue","data":{"id":14,"transfer_code":"TRF_xyz","reference":"TXN_14","status":"otp"}}`))
	}))
	defer srv.Close()

	client := NewPaystack(srv.URL, "sk_test_key", logging.Discard())
	transfer, err := client.CreateTransfer(context.Background(), TransferRequest{
		Amount:    decimal.RequireFromString("50.00"),
		Recipient: "RCP_abc",
		Reference: "TXN_14",
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	if !transfer.OTPRequired {
		t.Fatal("expected OTPRequired for status otp")
	}
	if transfer.Code != "TRF_xyz" {
		t.Fatalf("unexpected transfer code %q", transfer.Code)
	}
}

func TestPaystack_DeclinedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":false,"message":"Invalid account number"}`))
	}))
	defer srv.Close()

	client := NewPaystack(srv.URL, "sk_test_key", logging.Discard())
	_, err := client.CreateTransferRecipient(context.Background(), RecipientRequest{
		Type:          "nuban",
		Name:          "Ada Obi",
		AccountNumber: "0000000000",
		BankCode:      "058",
	})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestPaystack_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	client := NewPaystack(srv.URL, "sk_test_key", logging.Discard())
	_, err := client.VerifyCharge(context.Background(), "TXN_9")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPaystack_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	client := NewPaystack(srv.URL, "sk_test_key", logging.Discard())
	_, err := client.ListBanks(context.Background(), "nigeria")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
