package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-consortium/kyc_consortium/internal/auth"
)

const (
	// CallerLocal is the fiber locals key carrying the verified caller address.
	CallerLocal = "caller_address"
	// RoleLocal is the fiber locals key carrying the caller's role.
	RoleLocal = "caller_role"
)

// CallerAuth returns a middleware that verifies bearer tokens and exposes the
// authenticated caller address to handlers. Role checks beyond admin/bank are
// left to the consortium ledger, which validates registration and eligibility
// atomically with each operation.
func CallerAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		identity, err := tokens.Verify(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(CallerLocal, identity.Address)
		c.Locals(RoleLocal, identity.Role)
		return c.Next()
	}
}

// Caller extracts the verified caller address set by CallerAuth.
func Caller(c *fiber.Ctx) string {
	caller, _ := c.Locals(CallerLocal).(string)
	return caller
}
