package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/verification"
)

// RegisterVerificationRoutes wires the public phone verification endpoints.
func RegisterVerificationRoutes(r fiber.Router, h *verification.Handler, limiter fiber.Handler) {
	group := r.Group("/verification")
	if limiter != nil {
		group.Post("/send", limiter, h.Send)
		group.Post("/verify", limiter, h.Verify)
		return
	}
	group.Post("/send", h.Send)
	group.Post("/verify", h.Verify)
}
