package payments

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/gateway"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
)

var validate = validator.New()

// Handler exposes wallet and webhook endpoints.
type Handler struct {
	service    *Service
	reconciler *Reconciler
	users      identity.Repository
	secret     string
	logger     *slog.Logger
}

// NewHandler constructs the payments handler. secret signs inbound webhook
// deliveries.
func NewHandler(service *Service, reconciler *Reconciler, users identity.Repository, secret string, logger *slog.Logger) *Handler {
	return &Handler{service: service, reconciler: reconciler, users: users, secret: secret, logger: logger}
}

// Balance returns the authenticated account's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	balance, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ledger.ErrNoAccount) {
			return fiber.NewError(http.StatusNotFound, "ledger account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance":  balance,
		"currency": "NGN",
	})
}

type depositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	CallbackURL string          `json:"callback_url" validate:"omitempty,url"`
}

// InitializeDeposit opens a hosted checkout session for a card deposit.
func (h *Handler) InitializeDeposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	user, err := h.users.FindByID(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "account not found")
	}

	checkout, err := h.service.InitializeDeposit(c.UserContext(), DepositInput{
		AccountID:   uid,
		Email:       user.Email,
		Amount:      req.Amount,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return mapPaymentError(err)
	}
	return c.Status(http.StatusOK).JSON(checkout)
}

// VerifyDeposit confirms a deposit with the gateway and returns the
// transaction in its current state.
func (h *Handler) VerifyDeposit(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	t, err := h.service.VerifyDeposit(c.UserContext(), uid, c.Params("reference"))
	if err != nil {
		return mapPaymentError(err)
	}
	return c.Status(http.StatusOK).JSON(t)
}

type withdrawRequest struct {
	RecipientCode string          `json:"recipient_code" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
}

// Withdraw debits the balance and initiates a payout to a saved recipient.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	t, err := h.service.RequestWithdrawal(c.UserContext(), WithdrawInput{
		AccountID:     uid,
		RecipientCode: req.RecipientCode,
		Amount:        req.Amount,
		Reason:        req.Reason,
	})
	if err != nil {
		return mapPaymentError(err)
	}
	return c.Status(http.StatusCreated).JSON(t)
}

type finalizeRequest struct {
	TransferCode string `json:"transfer_code" validate:"required"`
	OTP          string `json:"otp" validate:"required"`
}

// FinalizeWithdraw submits the OTP for a transfer held at PROCESSING.
func (h *Handler) FinalizeWithdraw(c *fiber.Ctx) error {
	var req finalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	t, err := h.service.FinalizeWithdrawal(c.UserContext(), uid, req.TransferCode, req.OTP)
	if err != nil {
		return mapPaymentError(err)
	}
	return c.Status(http.StatusOK).JSON(t)
}

// Transactions lists the account's transaction history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	f := Filter{
		Type:   c.Query("transaction_type"),
		Status: c.Query("status"),
		Method: c.Query("payment_method"),
		From:   parseDate(c.Query("start_date"), false),
		To:     parseDate(c.Query("end_date"), true),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	items, err := h.service.Transactions(c.UserContext(), uid, f)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []Transaction{}
	}
	return c.Status(http.StatusOK).JSON(items)
}

// TransactionByReference returns one of the account's transactions.
func (h *Handler) TransactionByReference(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	t, err := h.service.Transaction(c.UserContext(), uid, c.Params("reference"))
	if err != nil {
		return mapPaymentError(err)
	}
	return c.Status(http.StatusOK).JSON(t)
}

// RequestVirtualAccount asks the gateway for a dedicated account number.
func (h *Handler) RequestVirtualAccount(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	user, err := h.users.FindByID(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "account not found")
	}

	va, ready, err := h.service.RequestVirtualAccount(c.UserContext(), user)
	if err != nil {
		return mapPaymentError(err)
	}
	if ready {
		return c.Status(http.StatusOK).JSON(va)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"status":  "pending",
		"message": "virtual account assignment in progress",
	})
}

// VirtualAccount returns the account's assigned virtual account.
func (h *Handler) VirtualAccount(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	va, err := h.service.VirtualAccount(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrNoVirtualAccount) {
			return fiber.NewError(http.StatusNotFound, "no virtual account assigned")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(va)
}

type recipientRequest struct {
	Type          string `json:"recipient_type"`
	Name          string `json:"name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required,len=10,numeric"`
	BankCode      string `json:"bank_code" validate:"required"`
	Currency      string `json:"currency"`
}

// AddRecipient saves a payout destination.
func (h *Handler) AddRecipient(c *fiber.Ctx) error {
	var req recipientRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	r, err := h.service.AddRecipient(c.UserContext(), uid, RecipientInput{
		Type:          req.Type,
		Name:          req.Name,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		Currency:      req.Currency,
	})
	if err != nil {
		return mapPaymentError(err)
	}
	return c.Status(http.StatusCreated).JSON(r)
}

// Recipients lists the account's saved payout destinations.
func (h *Handler) Recipients(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	items, err := h.service.Recipients(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []Recipient{}
	}
	return c.Status(http.StatusOK).JSON(items)
}

// Banks lists the banks supported for payouts.
func (h *Handler) Banks(c *fiber.Ctx) error {
	banks, err := h.service.Banks(c.UserContext(), c.Query("country"))
	if err != nil {
		return mapPaymentError(err)
	}
	out := make([]fiber.Map, 0, len(banks))
	for _, b := range banks {
		out = append(out, fiber.Map{"name": b.Name, "slug": b.Slug, "code": b.Code})
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Webhook receives gateway event deliveries. The signature covers the exact
// raw body; verification happens before any parsing. Once an event is
// dispatched the response is 200 regardless of processing outcome, so the
// provider does not retry events that failed locally.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	signature := c.Get("X-Paystack-Signature")
	if signature == "" {
		return fiber.NewError(http.StatusBadRequest, "missing signature")
	}
	body := c.Body()
	if !gateway.ValidSignature(h.secret, body, signature) {
		return fiber.NewError(http.StatusBadRequest, "invalid signature")
	}

	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed payload")
	}
	if envelope.Event == "" {
		return fiber.NewError(http.StatusBadRequest, "missing event")
	}

	if err := h.reconciler.HandleEvent(c.UserContext(), envelope.Event, envelope.Data); err != nil {
		h.logger.Error("webhook processing failed", "event", envelope.Event, "error", err)
	}
	return c.SendStatus(http.StatusOK)
}

// mapPaymentError translates service errors to transport errors.
func mapPaymentError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be greater than zero")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, ledger.ErrNoAccount):
		return fiber.NewError(http.StatusNotFound, "ledger account not found")
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	case errors.Is(err, ErrRecipientNotFound):
		return fiber.NewError(http.StatusNotFound, "recipient not found")
	case errors.Is(err, ErrRecipientExists):
		return fiber.NewError(http.StatusConflict, "recipient already exists")
	case errors.Is(err, ErrStateConflict):
		return fiber.NewError(http.StatusConflict, "transaction is not in a state that allows this operation")
	case errors.Is(err, gateway.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be greater than zero")
	case errors.Is(err, gateway.ErrRejected):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "payment provider unavailable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// parseDate accepts RFC 3339 timestamps and bare dates. A bare end date is
// widened to the end of that day so the range is inclusive.
func parseDate(v string, endOfDay bool) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}
