package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kyc-consortium/kyc_consortium/internal/auth"
)

// RegisterAuthRoutes wires the public token endpoint behind the rate limiter.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	r.Post("/auth/token", rateLimiter, h.IssueToken)
}
