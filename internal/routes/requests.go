package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kyc-consortium/kyc_consortium/internal/verification"
)

// RegisterRequestRoutes wires the verification request queue.
func RegisterRequestRoutes(r fiber.Router, h *verification.Handler) {
	r.Post("/requests", h.SubmitRequest)
	r.Get("/requests/:username", h.PendingRequest)
	r.Delete("/requests/:username", h.WithdrawRequest)
}
