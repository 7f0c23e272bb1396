package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/middleware"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/orders"
)

// RegisterOrderRoutes wires sender and courier order endpoints. The static
// /available route must register before the :id routes.
func RegisterOrderRoutes(r fiber.Router, h *orders.Handler) {
	group := r.Group("/orders")
	sender := middleware.RequireRole(identity.RoleUser)
	courier := middleware.RequireRole(identity.RoleCourier)

	group.Get("/available", courier, h.Available)

	group.Post("/", sender, h.Create)
	group.Get("/", h.List)
	group.Get("/:id", h.Detail)
	group.Get("/:id/track", h.Track)
	group.Post("/:id/pay", sender, h.Pay)
	group.Post("/:id/confirm", sender, h.Confirm)

	group.Post("/:id/accept", courier, h.Accept)
	group.Post("/:id/reject", courier, h.Reject)
	group.Patch("/:id/status", courier, h.Advance)
}
