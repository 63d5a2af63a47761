package membership

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
	"github.com/kyc-consortium/kyc_consortium/internal/notification"
)

// ErrWeakAccessKey rejects access keys too short to hand to a member bank.
var ErrWeakAccessKey = errors.New("access key must be at least 8 characters")

// Service manages the bank membership lifecycle on behalf of the admin and
// serves the bank views open to all members.
type Service struct {
	ledger   consortium.Ledger
	notifier notification.Notifier
}

// NewService builds a membership service instance.
func NewService(ledger consortium.Ledger, notifier notification.Notifier) *Service {
	return &Service{ledger: ledger, notifier: notifier}
}

// AddBankInput captures data required to register a bank.
type AddBankInput struct {
	Address   string
	Name      string
	RegNumber string
	AccessKey string
}

// AddBank registers a new member bank. The access key is hashed before it
// reaches the ledger; the plaintext is only ever held by the bank itself.
func (s *Service) AddBank(ctx context.Context, caller string, input AddBankInput) (consortium.Bank, error) {
	if len(input.AccessKey) < 8 {
		return consortium.Bank{}, ErrWeakAccessKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.AccessKey), bcrypt.DefaultCost)
	if err != nil {
		return consortium.Bank{}, err
	}

	bank := consortium.Bank{
		Address:       input.Address,
		Name:          input.Name,
		RegNumber:     input.RegNumber,
		AccessKeyHash: hash,
	}
	if err := s.ledger.AddBank(ctx, caller, bank); err != nil {
		return consortium.Bank{}, err
	}
	return s.ledger.BankDetails(ctx, input.Address)
}

// RemoveBank deletes a member bank and frees its address.
func (s *Service) RemoveBank(ctx context.Context, caller, address string) error {
	return s.ledger.RemoveBank(ctx, caller, address)
}

// SetEligibility toggles a bank's voting rights. Reinstatement wipes the
// bank's complaint slate inside the same ledger operation.
func (s *Service) SetEligibility(ctx context.Context, caller, address string, eligible bool) error {
	if err := s.ledger.SetEligibility(ctx, caller, address, eligible); err != nil {
		return err
	}
	if s.notifier != nil {
		kind := notification.KindBankSuspended
		body := fmt.Sprintf("bank %s suspended by admin", address)
		if eligible {
			kind = notification.KindBankReinstated
			body = fmt.Sprintf("bank %s reinstated with a clean complaint slate", address)
		}
		_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: address, Body: body})
	}
	return nil
}

// BankDetails returns the full record for any registered bank.
func (s *Service) BankDetails(ctx context.Context, address string) (consortium.Bank, error) {
	return s.ledger.BankDetails(ctx, address)
}

// ComplaintCount returns the bank's complaint tally for the current cycle.
func (s *Service) ComplaintCount(ctx context.Context, address string) (int, error) {
	return s.ledger.ComplaintCount(ctx, address)
}

// TotalBanks reports the current consortium size.
func (s *Service) TotalBanks(ctx context.Context) (int, error) {
	return s.ledger.TotalBanks(ctx)
}
