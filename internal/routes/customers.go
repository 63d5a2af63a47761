package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kyc-consortium/kyc_consortium/internal/customers"
	"github.com/kyc-consortium/kyc_consortium/internal/verification"
)

// RegisterCustomerRoutes wires the customer registry and voting endpoints.
func RegisterCustomerRoutes(r fiber.Router, regs *customers.Handler, votes *verification.Handler) {
	r.Post("/customers", regs.Add)
	r.Get("/customers/:username", regs.View)
	r.Put("/customers/:username", regs.Modify)

	r.Post("/customers/:username/upvote", votes.Upvote)
	r.Post("/customers/:username/downvote", votes.Downvote)
}
