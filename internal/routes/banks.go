package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kyc-consortium/kyc_consortium/internal/membership"
	"github.com/kyc-consortium/kyc_consortium/internal/oversight"
)

// RegisterBankRoutes wires bank membership, bank views and peer reporting.
// The admin-only rules live in the ledger, so no extra role middleware sits
// in front of the lifecycle endpoints.
func RegisterBankRoutes(r fiber.Router, banks *membership.Handler, reports *oversight.Handler) {
	r.Post("/banks", banks.AddBank)
	r.Delete("/banks/:address", banks.RemoveBank)
	r.Patch("/banks/:address/eligibility", banks.SetEligibility)

	r.Get("/banks/:address", banks.BankDetails)
	r.Get("/banks/:address/complaints", banks.ComplaintCount)

	r.Post("/banks/:address/reports", reports.Report)
}
