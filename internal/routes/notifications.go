package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/notification"
)

// RegisterNotificationRoutes wires the account notification feed.
func RegisterNotificationRoutes(r fiber.Router, h *notification.Handler) {
	group := r.Group("/payments/notifications")
	group.Get("/", h.List)
	group.Get("/unread-count", h.UnreadCount)
	group.Put("/:id/read", h.MarkRead)
	group.Post("/read-all", h.MarkAllRead)
}
