package verification

import (
	"context"
	"fmt"

	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
	"github.com/kyc-consortium/kyc_consortium/internal/notification"
)

// Service drives the verification request queue and the voting engine.
type Service struct {
	ledger   consortium.Ledger
	notifier notification.Notifier
}

// NewService builds a verification service instance.
func NewService(ledger consortium.Ledger, notifier notification.Notifier) *Service {
	return &Service{ledger: ledger, notifier: notifier}
}

// SubmitRequest files a verification request for the customer fingerprint.
func (s *Service) SubmitRequest(ctx context.Context, caller, username, fingerprint string) (consortium.KYCRequest, error) {
	if err := s.ledger.AddRequest(ctx, caller, username, fingerprint); err != nil {
		return consortium.KYCRequest{}, err
	}
	return s.ledger.PendingRequest(ctx, caller, username)
}

// WithdrawRequest drops the pending verification request for the username.
// Any eligible bank may withdraw, not just the original requester.
func (s *Service) WithdrawRequest(ctx context.Context, caller, username string) error {
	return s.ledger.RemoveRequest(ctx, caller, username)
}

// PendingRequest returns the live request for the username, if any.
func (s *Service) PendingRequest(ctx context.Context, caller, username string) (consortium.KYCRequest, error) {
	return s.ledger.PendingRequest(ctx, caller, username)
}

// Upvote casts an approving vote on the customer's pending verification.
func (s *Service) Upvote(ctx context.Context, caller, username string) (consortium.VoteResult, error) {
	result, err := s.ledger.Upvote(ctx, caller, username)
	if err != nil {
		return consortium.VoteResult{}, err
	}
	s.notifyOutcome(ctx, result)
	return result, nil
}

// Downvote casts a rejecting vote. The ledger also strips the onboarding
// bank of voting rights on every downvote.
func (s *Service) Downvote(ctx context.Context, caller, username string) (consortium.VoteResult, error) {
	result, err := s.ledger.Downvote(ctx, caller, username)
	if err != nil {
		return consortium.VoteResult{}, err
	}
	s.notifyOutcome(ctx, result)
	return result, nil
}

func (s *Service) notifyOutcome(ctx context.Context, result consortium.VoteResult) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindCustomerApproval,
		Destination: result.Username,
		Body: fmt.Sprintf("customer %s: %d up / %d down (threshold %d), approved=%t",
			result.Username, result.Upvotes, result.Downvotes, result.Threshold, result.Approved),
	})
	if result.InitiatorSuspended {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindBankSuspended,
			Destination: result.Username,
			Body:        fmt.Sprintf("onboarding bank for customer %s suspended by downvote", result.Username),
		})
	}
}
