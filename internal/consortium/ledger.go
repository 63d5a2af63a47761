package consortium

import (
	"context"
	"errors"
)

var (
	// ErrNotAdmin occurs when a bank lifecycle operation is attempted by a
	// caller other than the fixed admin identity.
	ErrNotAdmin = errors.New("caller is not the admin")

	// ErrBankExists indicates the bank address is already registered.
	ErrBankExists = errors.New("bank already registered")

	// ErrBankNotFound indicates no bank is registered under the address.
	ErrBankNotFound = errors.New("bank not found")

	// ErrBankNotEligible indicates the calling bank has lost voting rights.
	ErrBankNotEligible = errors.New("bank not eligible")

	// ErrCustomerExists indicates the username is already taken.
	ErrCustomerExists = errors.New("customer already exists")

	// ErrCustomerNotFound indicates no customer record for the username.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrRequestExists indicates a verification request is already pending
	// for the username.
	ErrRequestExists = errors.New("verification request already pending")

	// ErrRequestNotFound indicates no pending verification request exists.
	ErrRequestNotFound = errors.New("verification request not found")

	// ErrNoActiveRequest occurs when a vote is cast on a customer with no
	// pending verification request.
	ErrNoActiveRequest = errors.New("no active verification request")

	// ErrAlreadyVoted indicates the bank has already voted on the customer
	// in the current cycle.
	ErrAlreadyVoted = errors.New("already voted in this cycle")

	// ErrAlreadyReported indicates the bank has already reported the target
	// in the current cycle.
	ErrAlreadyReported = errors.New("already reported this bank")
)

// Ledger is the consortium's shared state machine. Every operation validates
// its preconditions and applies its effects atomically; a failed precondition
// leaves the state untouched. The admin identity is fixed at construction.
//
// Caller arguments carry the authenticated address supplied by the transport
// layer; the ledger only maps them onto the admin identity or a registered
// bank, it never authenticates.
type Ledger interface {
	// Bank lifecycle (admin only).
	AddBank(ctx context.Context, caller string, bank Bank) error
	RemoveBank(ctx context.Context, caller, address string) error
	// SetEligibility flips a bank's voting rights. Reinstating a bank clears
	// its complaint tally and every recorded reporter against it.
	SetEligibility(ctx context.Context, caller, address string, eligible bool) error

	// Reads open to any authenticated caller.
	BankDetails(ctx context.Context, address string) (Bank, error)
	ComplaintCount(ctx context.Context, address string) (int, error)
	TotalBanks(ctx context.Context) (int, error)

	// Customer registry (eligible banks only).
	AddCustomer(ctx context.Context, caller string, username, fingerprint string) error
	ViewCustomer(ctx context.Context, caller, username string) (Customer, error)
	// ModifyCustomer replaces the fingerprint, zeroes both tallies, drops any
	// pending verification request and clears every vote record for the
	// username, opening a fresh voting cycle.
	ModifyCustomer(ctx context.Context, caller, username, fingerprint string) error

	// Verification request queue (eligible banks only). Removal is
	// deliberately not restricted to the original requester.
	AddRequest(ctx context.Context, caller, username, fingerprint string) error
	RemoveRequest(ctx context.Context, caller, username string) error
	PendingRequest(ctx context.Context, caller, username string) (KYCRequest, error)

	// Voting (eligible banks only, once per customer per cycle, and only
	// while a verification request is pending). Every downvote additionally
	// suspends the bank that onboarded the customer, regardless of the
	// complaint threshold.
	Upvote(ctx context.Context, caller, username string) (VoteResult, error)
	Downvote(ctx context.Context, caller, username string) (VoteResult, error)

	// ReportBank files a complaint against target (eligible banks only, once
	// per target per cycle) and recomputes the target's eligibility.
	ReportBank(ctx context.Context, caller, target string) (ReportResult, error)
}

// approvalThreshold is the count-based boundary derived from consortium size.
// It gates both customer approval and complaint-based suspension.
func approvalThreshold(totalBanks int) int {
	return totalBanks / 3
}

// approved derives a customer's approval flag from its tallies.
func approved(upvotes, downvotes, threshold int) bool {
	return downvotes < threshold && upvotes > downvotes
}
