package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vortex-hue/Xcellar-RestAPI/internal/auth"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/config"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/gateway"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/identity"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/ledger"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/middleware"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/notification"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/orders"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/payments"
	"github.com/vortex-hue/Xcellar-RestAPI/internal/verification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. A nil DB or Cache
// falls back to in-memory backends and the simulated gateway, which only the
// development environment accepts.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.Dev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Metrics())
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Storage backends
	var (
		ledgerBackend ledger.Ledger
		identityRepo  identity.Repository
		noteStore     notification.Store
		paymentStore  payments.Store
		orderStore    orders.Store
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		noteStore = notification.NewPostgresStore(d.DB)
		paymentStore = payments.NewPostgresStore(d.DB)
		orderStore = orders.NewPostgresStore(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
		memNotes := notification.NewMemoryStore()
		noteStore = memNotes
		paymentStore = payments.NewMemoryStore(ledgerBackend, memNotes)
		orderStore = orders.NewMemoryStore(ledgerBackend, memNotes)
	}

	var gw gateway.Client
	if d.Cfg.PaystackSecretKey != "" {
		gw = gateway.NewPaystack(d.Cfg.PaystackBaseURL, d.Cfg.PaystackSecretKey, d.Logger)
	} else {
		gw = gateway.Static{}
	}

	// Services and handlers
	identitySvc := identity.NewService(identityRepo, ledgerBackend)
	identityHandler := identity.NewHandler(identitySvc)
	authSvc := auth.NewService(d.Cfg, identityRepo)
	authHandler := auth.NewHandler(identitySvc, authSvc)

	paymentSvc := payments.NewService(paymentStore, ledgerBackend, gw, d.Logger)
	reconciler := payments.NewReconciler(paymentStore, identityRepo, d.Logger)
	paymentHandler := payments.NewHandler(paymentSvc, reconciler, identityRepo, d.Cfg.PaystackWebhookSecret, d.Logger)

	orderSvc := orders.NewService(orderStore, identityRepo, d.Logger)
	orderHandler := orders.NewHandler(orderSvc)

	noteHandler := notification.NewHandler(noteStore)

	otpProvider := verification.NewStatic(d.Logger)
	verificationSvc := verification.NewService(otpProvider, identityRepo, d.Cache, d.Cfg.OTPCooldown, d.Logger)
	verificationHandler := verification.NewHandler(verificationSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	loginLimiter := middleware.RateLimit(d.Cache, "login", d.Cfg.LoginRatePerMin, middleware.KeyByBodyEmail)
	RegisterAuthRoutes(api, identityHandler, authHandler, loginLimiter)
	otpLimiter := middleware.RateLimit(d.Cache, "otp", 10, middleware.KeyByIP)
	RegisterVerificationRoutes(api, verificationHandler, otpLimiter)
	RegisterWebhookRoute(api, paymentHandler)

	// Protected routes
	protected := api.Group("", middleware.Auth(d.Cfg, identityRepo))
	RegisterAccountRoutes(protected, identityHandler, authHandler)
	RegisterPaymentRoutes(protected, paymentHandler)
	RegisterNotificationRoutes(protected, noteHandler)
	RegisterOrderRoutes(protected, orderHandler)

	return nil
}
