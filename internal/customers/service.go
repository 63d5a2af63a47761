package customers

import (
	"context"

	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
)

// Service exposes the shared customer registry to member banks. All rules
// live in the ledger; the service is the seam between transport and core.
type Service struct {
	ledger consortium.Ledger
}

// NewService builds a customer service instance.
func NewService(ledger consortium.Ledger) *Service {
	return &Service{ledger: ledger}
}

// Add registers a new customer under the calling bank.
func (s *Service) Add(ctx context.Context, caller, username, fingerprint string) (consortium.Customer, error) {
	if err := s.ledger.AddCustomer(ctx, caller, username, fingerprint); err != nil {
		return consortium.Customer{}, err
	}
	return s.ledger.ViewCustomer(ctx, caller, username)
}

// View returns the full customer record.
func (s *Service) View(ctx context.Context, caller, username string) (consortium.Customer, error) {
	return s.ledger.ViewCustomer(ctx, caller, username)
}

// Modify replaces the customer's fingerprint and opens a fresh voting cycle:
// tallies reset, any pending verification request is dropped and every bank
// may vote again.
func (s *Service) Modify(ctx context.Context, caller, username, fingerprint string) (consortium.Customer, error) {
	if err := s.ledger.ModifyCustomer(ctx, caller, username, fingerprint); err != nil {
		return consortium.Customer{}, err
	}
	return s.ledger.ViewCustomer(ctx, caller, username)
}
