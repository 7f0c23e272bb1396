package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/gateway"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/metrics"
)

// Webhook event types the reconciler understands.
const (
	EventChargeSuccess    = "charge.success"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
	EventDVAAssigned      = "dedicatedaccount.assign.success"
)

// Reconciler applies gateway webhook events to local state. Each event is one
// store boundary; deliveries are retried by the provider, so every handler is
// idempotent. Events that reference nothing local are logged and dropped.
type Reconciler struct {
	store  Store
	users  identity.Repository
	logger *slog.Logger
}

// NewReconciler wires the webhook reconciler.
func NewReconciler(store Store, users identity.Repository, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, users: users, logger: logger}
}

// HandleEvent dispatches one verified webhook delivery.
func (r *Reconciler) HandleEvent(ctx context.Context, event string, data json.RawMessage) error {
	metrics.WebhookEvents.WithLabelValues(event).Inc()

	switch event {
	case EventChargeSuccess:
		return r.chargeSuccess(ctx, data)
	case EventTransferSuccess:
		return r.transferSuccess(ctx, data)
	case EventTransferFailed:
		return r.transferFailed(ctx, data)
	case EventTransferReversed:
		return r.transferReversed(ctx, data)
	case EventDVAAssigned:
		return r.virtualAccountAssigned(ctx, data)
	default:
		r.logger.Warn("unhandled webhook event", "event", event)
		return nil
	}
}

func (r *Reconciler) chargeSuccess(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Channel   string `json:"channel"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode charge.success: %w", err)
	}

	user, err := r.users.FindByEmail(ctx, payload.Customer.Email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			r.logger.Warn("charge for unknown customer dropped",
				"reference", payload.Reference, "email", payload.Customer.Email)
			metrics.WebhookUnmatched.Inc()
			return nil
		}
		return err
	}

	_, created, err := r.store.SettleCharge(ctx, ChargeEvent{
		AccountID: user.ID,
		Reference: payload.Reference,
		Amount:    gateway.FromMinorUnits(payload.Amount),
		Channel:   payload.Channel,
		GatewayID: strconv.FormatInt(payload.ID, 10),
	})
	if err != nil {
		return err
	}
	if !created {
		r.logger.Info("charge already settled", "reference", payload.Reference)
	}
	return nil
}

func (r *Reconciler) transferSuccess(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		Reference    string `json:"reference"`
		TransferCode string `json:"transfer_code"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode transfer.success: %w", err)
	}

	_, applied, err := r.store.Complete(ctx, payload.Reference, payload.TransferCode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.Warn("transfer.success for unknown reference dropped", "reference", payload.Reference)
			metrics.WebhookUnmatched.Inc()
			return nil
		}
		return err
	}
	if !applied {
		r.logger.Info("transfer already terminal", "reference", payload.Reference)
	}
	return nil
}

func (r *Reconciler) transferFailed(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		Reference string `json:"reference"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode transfer.failed: %w", err)
	}
	if payload.Reason == "" {
		payload.Reason = "Transfer failed"
	}

	_, _, err := r.store.Fail(ctx, payload.Reference, payload.Reason)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.Warn("transfer.failed for unknown reference dropped", "reference", payload.Reference)
			metrics.WebhookUnmatched.Inc()
			return nil
		}
		return err
	}
	return nil
}

func (r *Reconciler) transferReversed(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode transfer.reversed: %w", err)
	}

	if _, err := r.store.Reverse(ctx, payload.Reference); err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.Warn("transfer.reversed for unknown reference dropped", "reference", payload.Reference)
			metrics.WebhookUnmatched.Inc()
			return nil
		}
		return err
	}
	return nil
}

func (r *Reconciler) virtualAccountAssigned(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		Customer struct {
			Email        string `json:"email"`
			CustomerCode string `json:"customer_code"`
		} `json:"customer"`
		DedicatedAccount struct {
			AccountNumber string `json:"account_number"`
			AccountName   string `json:"account_name"`
			Currency      string `json:"currency"`
			Bank          struct {
				Name string `json:"name"`
				Slug string `json:"slug"`
			} `json:"bank"`
		} `json:"dedicated_account"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode dedicatedaccount.assign.success: %w", err)
	}

	user, err := r.users.FindByEmail(ctx, payload.Customer.Email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			r.logger.Warn("virtual account for unknown customer dropped", "email", payload.Customer.Email)
			metrics.WebhookUnmatched.Inc()
			return nil
		}
		return err
	}

	return r.store.UpsertVirtualAccount(ctx, &VirtualAccount{
		AccountID:     user.ID,
		CustomerID:    payload.Customer.CustomerCode,
		AccountNumber: payload.DedicatedAccount.AccountNumber,
		BankName:      payload.DedicatedAccount.Bank.Name,
		BankSlug:      payload.DedicatedAccount.Bank.Slug,
		AccountName:   payload.DedicatedAccount.AccountName,
		Currency:      payload.DedicatedAccount.Currency,
	})
}
