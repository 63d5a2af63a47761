package consortium

import (
	"context"
	"sync"
	"time"
)

type inMemoryLedger struct {
	mu        sync.RWMutex
	admin     string
	banks     map[string]Bank
	customers map[string]Customer
	requests  map[string]KYCRequest
	votes     map[string]map[string]bool // username -> bank address -> voted
	reports   map[string]map[string]bool // target -> reporter -> reported
}

// NewInMemory creates a concurrency-safe in-memory ledger. The admin address
// is fixed for the lifetime of the ledger.
func NewInMemory(admin string) Ledger {
	return &inMemoryLedger{
		admin:     admin,
		banks:     make(map[string]Bank),
		customers: make(map[string]Customer),
		requests:  make(map[string]KYCRequest),
		votes:     make(map[string]map[string]bool),
		reports:   make(map[string]map[string]bool),
	}
}

// requireAdmin gates bank lifecycle operations. Callers must hold mu.
func (l *inMemoryLedger) requireAdmin(caller string) error {
	if caller != l.admin {
		return ErrNotAdmin
	}
	return nil
}

// eligibleBank resolves the caller to a registered bank with voting rights.
// Callers must hold mu.
func (l *inMemoryLedger) eligibleBank(caller string) (Bank, error) {
	bank, ok := l.banks[caller]
	if !ok {
		return Bank{}, ErrBankNotFound
	}
	if !bank.Eligible {
		return Bank{}, ErrBankNotEligible
	}
	return bank, nil
}

func (l *inMemoryLedger) AddBank(_ context.Context, caller string, bank Bank) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if _, exists := l.banks[bank.Address]; exists {
		return ErrBankExists
	}
	bank.Complaints = 0
	bank.Requests = 0
	bank.Eligible = true
	if bank.CreatedAt.IsZero() {
		bank.CreatedAt = time.Now().UTC()
	}
	l.banks[bank.Address] = bank
	return nil
}

func (l *inMemoryLedger) RemoveBank(_ context.Context, caller, address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if _, ok := l.banks[address]; !ok {
		return ErrBankNotFound
	}
	// Vote and complaint records keyed by the removed address stay behind;
	// authorization checks go through bank existence, so they are inert.
	delete(l.banks, address)
	return nil
}

func (l *inMemoryLedger) SetEligibility(_ context.Context, caller, address string, eligible bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	bank, ok := l.banks[address]
	if !ok {
		return ErrBankNotFound
	}
	bank.Eligible = eligible
	if eligible {
		// Reinstatement opens a fresh complaint cycle: tally back to zero and
		// every recorded reporter may report again.
		bank.Complaints = 0
		delete(l.reports, address)
	}
	l.banks[address] = bank
	return nil
}

func (l *inMemoryLedger) BankDetails(_ context.Context, address string) (Bank, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bank, ok := l.banks[address]
	if !ok {
		return Bank{}, ErrBankNotFound
	}
	return bank, nil
}

func (l *inMemoryLedger) ComplaintCount(_ context.Context, address string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bank, ok := l.banks[address]
	if !ok {
		return 0, ErrBankNotFound
	}
	return bank.Complaints, nil
}

func (l *inMemoryLedger) TotalBanks(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.banks), nil
}

func (l *inMemoryLedger) AddCustomer(_ context.Context, caller, username, fingerprint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.eligibleBank(caller); err != nil {
		return err
	}
	if _, exists := l.customers[username]; exists {
		return ErrCustomerExists
	}
	l.customers[username] = Customer{
		Username:    username,
		Fingerprint: fingerprint,
		InitiatedBy: caller,
		CreatedAt:   time.Now().UTC(),
	}
	return nil
}

func (l *inMemoryLedger) ViewCustomer(_ context.Context, caller, username string) (Customer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, err := l.eligibleBank(caller); err != nil {
		return Customer{}, err
	}
	customer, ok := l.customers[username]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return customer, nil
}

func (l *inMemoryLedger) ModifyCustomer(_ context.Context, caller, username, fingerprint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.eligibleBank(caller); err != nil {
		return err
	}
	customer, ok := l.customers[username]
	if !ok {
		return ErrCustomerNotFound
	}
	customer.Fingerprint = fingerprint
	customer.Upvotes = 0
	customer.Downvotes = 0
	customer.Approved = false
	l.customers[username] = customer
	delete(l.requests, username)
	delete(l.votes, username)
	return nil
}

func (l *inMemoryLedger) AddRequest(_ context.Context, caller, username, fingerprint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bank, err := l.eligibleBank(caller)
	if err != nil {
		return err
	}
	if _, ok := l.customers[username]; !ok {
		return ErrCustomerNotFound
	}
	if _, exists := l.requests[username]; exists {
		return ErrRequestExists
	}
	l.requests[username] = KYCRequest{
		Username:    username,
		Fingerprint: fingerprint,
		RequestedBy: caller,
		CreatedAt:   time.Now().UTC(),
	}
	bank.Requests++
	l.banks[caller] = bank
	return nil
}

func (l *inMemoryLedger) RemoveRequest(_ context.Context, caller, username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.eligibleBank(caller); err != nil {
		return err
	}
	// Any eligible bank may withdraw any pending request, not just the
	// original requester.
	if _, ok := l.requests[username]; !ok {
		return ErrRequestNotFound
	}
	delete(l.requests, username)
	return nil
}

func (l *inMemoryLedger) PendingRequest(_ context.Context, caller, username string) (KYCRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, err := l.eligibleBank(caller); err != nil {
		return KYCRequest{}, err
	}
	req, ok := l.requests[username]
	if !ok {
		return KYCRequest{}, ErrRequestNotFound
	}
	return req, nil
}

func (l *inMemoryLedger) Upvote(_ context.Context, caller, username string) (VoteResult, error) {
	return l.vote(caller, username, true)
}

func (l *inMemoryLedger) Downvote(_ context.Context, caller, username string) (VoteResult, error) {
	return l.vote(caller, username, false)
}

func (l *inMemoryLedger) vote(caller, username string, up bool) (VoteResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.eligibleBank(caller); err != nil {
		return VoteResult{}, err
	}
	customer, ok := l.customers[username]
	if !ok {
		return VoteResult{}, ErrCustomerNotFound
	}
	if l.votes[username][caller] {
		return VoteResult{}, ErrAlreadyVoted
	}
	if _, ok := l.requests[username]; !ok {
		return VoteResult{}, ErrNoActiveRequest
	}

	if up {
		customer.Upvotes++
	} else {
		customer.Downvotes++
	}
	threshold := approvalThreshold(len(l.banks))
	customer.Approved = approved(customer.Upvotes, customer.Downvotes, threshold)
	l.customers[username] = customer

	if l.votes[username] == nil {
		l.votes[username] = make(map[string]bool)
	}
	l.votes[username][caller] = true

	result := VoteResult{
		Username:  username,
		Upvotes:   customer.Upvotes,
		Downvotes: customer.Downvotes,
		Threshold: threshold,
		Approved:  customer.Approved,
	}

	// Each downvote suspends the onboarding bank outright, with no threshold
	// involved. The bank may have been removed since onboarding.
	if !up {
		if initiator, ok := l.banks[customer.InitiatedBy]; ok {
			initiator.Eligible = false
			l.banks[customer.InitiatedBy] = initiator
			result.InitiatorSuspended = true
		}
	}

	return result, nil
}

func (l *inMemoryLedger) ReportBank(_ context.Context, caller, target string) (ReportResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.eligibleBank(caller); err != nil {
		return ReportResult{}, err
	}
	targetBank, ok := l.banks[target]
	if !ok {
		return ReportResult{}, ErrBankNotFound
	}
	if l.reports[target][caller] {
		return ReportResult{}, ErrAlreadyReported
	}

	targetBank.Complaints++
	threshold := approvalThreshold(len(l.banks))
	targetBank.Eligible = targetBank.Complaints < threshold
	l.banks[target] = targetBank

	if l.reports[target] == nil {
		l.reports[target] = make(map[string]bool)
	}
	l.reports[target][caller] = true

	return ReportResult{
		Target:     target,
		Complaints: targetBank.Complaints,
		Threshold:  threshold,
		Eligible:   targetBank.Eligible,
	}, nil
}
