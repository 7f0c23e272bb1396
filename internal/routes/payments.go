package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/payments"
)

// RegisterPaymentRoutes wires wallet, deposit, withdrawal and recipient
// endpoints for the authenticated account.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	group := r.Group("/payments")

	group.Get("/balance", h.Balance)

	group.Post("/initialize", h.InitializeDeposit)
	group.Get("/verify/:reference", h.VerifyDeposit)

	group.Post("/dva/create", h.RequestVirtualAccount)
	group.Get("/dva", h.VirtualAccount)

	group.Post("/transfer/recipient/create", h.AddRecipient)
	group.Get("/transfer/recipients", h.Recipients)
	group.Post("/transfer", h.Withdraw)
	group.Post("/transfer/finalize", h.FinalizeWithdraw)

	group.Get("/transactions", h.Transactions)
	group.Get("/transactions/:reference", h.TransactionByReference)

	group.Get("/banks", h.Banks)
}

// RegisterWebhookRoute wires the gateway webhook receiver. Authentication is
// the body signature, not a bearer token.
func RegisterWebhookRoute(r fiber.Router, h *payments.Handler) {
	r.Post("/payments/webhook", h.Webhook)
}
