package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kyc-consortium/kyc_consortium/internal/auth"
	"github.com/kyc-consortium/kyc_consortium/internal/config"
	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
	"github.com/kyc-consortium/kyc_consortium/internal/customers"
	"github.com/kyc-consortium/kyc_consortium/internal/membership"
	"github.com/kyc-consortium/kyc_consortium/internal/middleware"
	"github.com/kyc-consortium/kyc_consortium/internal/notification"
	"github.com/kyc-consortium/kyc_consortium/internal/oversight"
	"github.com/kyc-consortium/kyc_consortium/internal/verification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// The ledger holds all consortium state; everything else is stateless
	// glue around it.
	var ledger consortium.Ledger
	if d.DB != nil {
		ledger = consortium.NewPostgres(d.DB, d.Cfg.AdminAddress)
	} else {
		ledger = consortium.NewInMemory(d.Cfg.AdminAddress)
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	membershipHandler := membership.NewHandler(membership.NewService(ledger, notifier))
	customerHandler := customers.NewHandler(customers.NewService(ledger))
	verificationHandler := verification.NewHandler(verification.NewService(ledger, notifier))
	oversightHandler := oversight.NewHandler(oversight.NewService(ledger, notifier))
	authService := auth.NewService(d.Cfg, ledger)

	// API routes
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
	rateLimiter := middleware.TokenRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, auth.NewHandler(authService), rateLimiter)

	// Protected routes; every operation below runs with a verified caller
	// address, and the ledger decides what that address may do.
	protected := api.Group("", middleware.CallerAuth(authService))
	RegisterBankRoutes(protected, membershipHandler, oversightHandler)
	RegisterCustomerRoutes(protected, customerHandler, verificationHandler)
	RegisterRequestRoutes(protected, verificationHandler)

	return nil
}
