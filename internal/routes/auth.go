package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/auth"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/middleware"
)

// RegisterAuthRoutes wires the public onboarding and token endpoints.
func RegisterAuthRoutes(r fiber.Router, ids *identity.Handler, h *auth.Handler, loginLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", ids.Register)
	if loginLimiter != nil {
		group.Post("/login", loginLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/token/refresh", h.Refresh)
}

// RegisterAccountRoutes wires endpoints that act on the authenticated account.
func RegisterAccountRoutes(r fiber.Router, ids *identity.Handler, h *auth.Handler) {
	r.Post("/auth/logout", h.Logout)
	r.Get("/users/me", ids.Me)
	r.Patch("/couriers/availability", middleware.RequireRole(identity.RoleCourier), ids.SetAvailability)
}
