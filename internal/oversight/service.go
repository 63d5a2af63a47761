package oversight

import (
	"context"
	"fmt"

	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
	"github.com/kyc-consortium/kyc_consortium/internal/notification"
)

// Service lets member banks report misbehaving peers. Enough complaints in a
// cycle strip the target of voting rights.
type Service struct {
	ledger   consortium.Ledger
	notifier notification.Notifier
}

// NewService builds an oversight service instance.
func NewService(ledger consortium.Ledger, notifier notification.Notifier) *Service {
	return &Service{ledger: ledger, notifier: notifier}
}

// Report files a complaint against the target bank and recomputes its
// eligibility against the complaint threshold.
func (s *Service) Report(ctx context.Context, caller, target string) (consortium.ReportResult, error) {
	result, err := s.ledger.ReportBank(ctx, caller, target)
	if err != nil {
		return consortium.ReportResult{}, err
	}
	if s.notifier != nil && !result.Eligible {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindBankSuspended,
			Destination: result.Target,
			Body: fmt.Sprintf("bank %s suspended: %d complaints reached threshold %d",
				result.Target, result.Complaints, result.Threshold),
		})
	}
	return result, nil
}
