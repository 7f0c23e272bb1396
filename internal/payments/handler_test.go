package payments

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/gateway"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/logging"
)

const testWebhookSecret = "whsec_test"

func newWebhookApp(t *testing.T) (*fiber.App, *paymentsFixture) {
	t.Helper()
	fx := newFixture(t, &fakeGateway{})
	fx.seedAccount(t, "u1", "0")

	users := identity.NewMemoryRepository()
	err := users.Create(context.Background(), identity.User{
		ID:     "u1",
		Email:  "ada@example.com",
		Role:   identity.RoleUser,
		Active: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	rec := NewReconciler(fx.store, users, logging.Discard())
	handler := NewHandler(fx.svc, rec, users, testWebhookSecret, logging.Discard())

	app := fiber.New()
	app.Post("/webhooks/paystack", handler.Webhook)
	return app, fx
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Paystack-Signature", signature)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("webhook request: %v", err)
	}
	return resp
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	app, _ := newWebhookApp(t)

	resp := postWebhook(t, app, []byte(`{"event":"charge.success","data":{}}`), "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature, got %d", resp.StatusCode)
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	app, fx := newWebhookApp(t)

	body := []byte(`{"event":"charge.success","data":{"id":1,"reference":"ps_x","amount":100000,"channel":"card","customer":{"email":"ada@example.com"}}}`)
	resp := postWebhook(t, app, body, "deadbeef")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", resp.StatusCode)
	}
	if got := fx.balance(t, "u1"); got != "0.00" {
		t.Fatalf("unsigned delivery must not move money, got %s", got)
	}
}

func TestWebhookRejectsMissingEvent(t *testing.T) {
	app, _ := newWebhookApp(t)

	body := []byte(`{"data":{"reference":"ps_x"}}`)
	resp := postWebhook(t, app, body, gateway.Signature(testWebhookSecret, body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing event, got %d", resp.StatusCode)
	}
}

func TestWebhookSettlesSignedCharge(t *testing.T) {
	app, fx := newWebhookApp(t)

	body := []byte(`{"event":"charge.success","data":{"id":55,"reference":"ps_dep_9","amount":250000,"channel":"card","customer":{"email":"ada@example.com"}}}`)
	resp := postWebhook(t, app, body, gateway.Signature(testWebhookSecret, body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := fx.balance(t, "u1"); got != "2500.00" {
		t.Fatalf("expected 2500.00 after settle, got %s", got)
	}

	tx, err := fx.store.ByReference(context.Background(), "ps_dep_9")
	if err != nil {
		t.Fatalf("by reference: %v", err)
	}
	if tx.Method != MethodBankTransfer {
		t.Fatalf("expected BANK_TRANSFER for card channel, got %s", tx.Method)
	}
}

func TestWebhookAcknowledgesUnprocessableEvents(t *testing.T) {
	app, _ := newWebhookApp(t)

	// unknown event type
	body := []byte(`{"event":"subscription.create","data":{}}`)
	resp := postWebhook(t, app, body, gateway.Signature(testWebhookSecret, body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for unknown event, got %d", resp.StatusCode)
	}

	// transfer event with no matching transaction
	body = []byte(`{"event":"transfer.success","data":{"reference":"TXN_MISSING","transfer_code":"TRF_1"}}`)
	resp = postWebhook(t, app, body, gateway.Signature(testWebhookSecret, body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for unmatched transfer, got %d", resp.StatusCode)
	}
}
