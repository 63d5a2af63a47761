package consortium

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

const adminAddr = "admin"

func newLedger(t *testing.T, banks ...string) Ledger {
	t.Helper()
	l := NewInMemory(adminAddr)
	SeedBanks(l, banks...)
	return l
}

func bankAddrs(n int) []string {
	addrs := make([]string, n)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("bank-%d", i)
	}
	return addrs
}

func TestAddBank_AdminOnly(t *testing.T) {
	l := NewInMemory(adminAddr)
	ctx := context.Background()

	if err := l.AddBank(ctx, "bank-0", Bank{Address: "bank-1"}); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if err := l.AddBank(ctx, adminAddr, Bank{Address: "bank-1", Name: "First"}); err != nil {
		t.Fatalf("add bank: %v", err)
	}
	if err := l.AddBank(ctx, adminAddr, Bank{Address: "bank-1"}); !errors.Is(err, ErrBankExists) {
		t.Fatalf("expected ErrBankExists, got %v", err)
	}

	bank, err := l.BankDetails(ctx, "bank-1")
	if err != nil {
		t.Fatalf("bank details: %v", err)
	}
	if !bank.Eligible || bank.Complaints != 0 || bank.Requests != 0 {
		t.Fatalf("new bank not in clean state: %+v", bank)
	}
}

func TestTotalBanks_TracksMembership(t *testing.T) {
	l := NewInMemory(adminAddr)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.AddBank(ctx, adminAddr, Bank{Address: fmt.Sprintf("bank-%d", i)}); err != nil {
			t.Fatalf("add bank %d: %v", i, err)
		}
	}
	total, err := l.TotalBanks(ctx)
	if err != nil || total != 5 {
		t.Fatalf("expected 5 banks, got %d (err=%v)", total, err)
	}

	if err := l.RemoveBank(ctx, adminAddr, "bank-2"); err != nil {
		t.Fatalf("remove bank: %v", err)
	}
	if err := l.RemoveBank(ctx, adminAddr, "bank-2"); !errors.Is(err, ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
	total, _ = l.TotalBanks(ctx)
	if total != 4 {
		t.Fatalf("expected 4 banks after removal, got %d", total)
	}
}

func TestAddCustomer_DuplicateUsername(t *testing.T) {
	l := newLedger(t, "bank-0", "bank-1")
	ctx := context.Background()

	if err := l.AddCustomer(ctx, "bank-0", "alice", "fp-1"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := l.AddCustomer(ctx, "bank-1", "alice", "fp-2"); !errors.Is(err, ErrCustomerExists) {
		t.Fatalf("expected ErrCustomerExists, got %v", err)
	}

	// The existing record is untouched by the failed insert.
	customer, err := l.ViewCustomer(ctx, "bank-1", "alice")
	if err != nil {
		t.Fatalf("view customer: %v", err)
	}
	if customer.Fingerprint != "fp-1" || customer.InitiatedBy != "bank-0" {
		t.Fatalf("existing record mutated: %+v", customer)
	}
}

func TestAddCustomer_RequiresEligibleBank(t *testing.T) {
	l := newLedger(t, "bank-0")
	SeedBank(l, Bank{Address: "bank-1", Eligible: false})
	ctx := context.Background()

	if err := l.AddCustomer(ctx, "stranger", "alice", "fp"); !errors.Is(err, ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
	if err := l.AddCustomer(ctx, "bank-1", "alice", "fp"); !errors.Is(err, ErrBankNotEligible) {
		t.Fatalf("expected ErrBankNotEligible, got %v", err)
	}
}

func TestVote_OncePerCycle(t *testing.T) {
	l := newLedger(t, bankAddrs(4)...)
	ctx := context.Background()

	if err := l.AddCustomer(ctx, "bank-0", "alice", "fp"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := l.AddRequest(ctx, "bank-0", "alice", "fp"); err != nil {
		t.Fatalf("add request: %v", err)
	}

	if _, err := l.Upvote(ctx, "bank-1", "alice"); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	if _, err := l.Upvote(ctx, "bank-1", "alice"); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if _, err := l.Downvote(ctx, "bank-1", "alice"); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted on flipped vote, got %v", err)
	}
}

func TestVote_RequiresActiveRequest(t *testing.T) {
	l := newLedger(t, bankAddrs(3)...)
	ctx := context.Background()

	if err := l.AddCustomer(ctx, "bank-0", "alice", "fp"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if _, err := l.Upvote(ctx, "bank-1", "alice"); !errors.Is(err, ErrNoActiveRequest) {
		t.Fatalf("expected ErrNoActiveRequest, got %v", err)
	}
	if _, err := l.Upvote(ctx, "bank-1", "bob"); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestModifyCustomer_OpensFreshCycle(t *testing.T) {
	l := newLedger(t, bankAddrs(4)...)
	ctx := context.Background()

	if err := l.AddCustomer(ctx, "bank-0", "alice", "fp-1"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := l.AddRequest(ctx, "bank-0", "alice", "fp-1"); err != nil {
		t.Fatalf("add request: %v", err)
	}
	if _, err := l.Upvote(ctx, "bank-1", "alice"); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	if _, err := l.Upvote(ctx, "bank-2", "alice"); err != nil {
		t.Fatalf("upvote: %v", err)
	}

	if err := l.ModifyCustomer(ctx, "bank-0", "alice", "fp-2"); err != nil {
		t.Fatalf("modify customer: %v", err)
	}

	customer, err := l.ViewCustomer(ctx, "bank-0", "alice")
	if err != nil {
		t.Fatalf("view customer: %v", err)
	}
	if customer.Fingerprint != "fp-2" {
		t.Fatalf("fingerprint not replaced: %s", customer.Fingerprint)
	}
	if customer.Upvotes != 0 || customer.Downvotes != 0 || customer.Approved {
		t.Fatalf("tallies not reset: %+v", customer)
	}

	// The pending request is dropped with the old fingerprint.
	if _, err := l.PendingRequest(ctx, "bank-0", "alice"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected request to be dropped, got %v", err)
	}

	// Every bank may vote again once a new request is filed.
	if err := l.AddRequest(ctx, "bank-0", "alice", "fp-2"); err != nil {
		t.Fatalf("re-request: %v", err)
	}
	if _, err := l.Upvote(ctx, "bank-1", "alice"); err != nil {
		t.Fatalf("vote in new cycle: %v", err)
	}
}

func TestApproval_DownvoteThreshold(t *testing.T) {
	// Six banks registered, threshold = 2.
	l := newLedger(t, bankAddrs(6)...)
	ctx := context.Background()

	if err := l.AddCustomer(ctx, "bank-0", "carol", "fp"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := l.AddRequest(ctx, "bank-0", "carol", "fp"); err != nil {
		t.Fatalf("add request: %v", err)
	}

	res, err := l.Downvote(ctx, "bank-1", "carol")
	if err != nil {
		t.Fatalf("first downvote: %v", err)
	}
	if res.Downvotes != 1 || res.Approved {
		t.Fatalf("after first downvote: %+v", res)
	}

	res, err = l.Downvote(ctx, "bank-2", "carol")
	if err != nil {
		t.Fatalf("second downvote: %v", err)
	}
	if res.Downvotes != 2 || res.Approved {
		t.Fatalf("after second downvote: %+v", res)
	}

	// Downvotes reached the threshold; no amount of later upvotes approves.
	for _, voter := range []string{"bank-3", "bank-4", "bank-5"} {
		res, err = l.Upvote(ctx, voter, "carol")
		if err != nil {
			t.Fatalf("upvote by %s: %v", voter, err)
		}
		if res.Approved {
			t.Fatalf("approved despite downvotes at threshold: %+v", res)
		}
	}
}

func TestApproval_TiedTalliesRejected(t *testing.T) {
	// Four banks registered, threshold = 1.
	l := newLedger(t, bankAddrs(4)...)
	ctx := context.Background()

	if err := l.AddCustomer(ctx, "bank-0", "dave", "fp"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := l.AddRequest(ctx, "bank-0", "dave", "fp"); err != nil {
		t.Fatalf("add request: %v", err)
	}

	res, err := l.Upvote(ctx, "bank-1", "dave")
	if err != nil {
		t.Fatalf("upvote: %v", err)
	}
	if !res.Approved {
		t.Fatalf("single upvote below threshold should approve: %+v", res)
	}

	res, err = l.Downvote(ctx, "bank-2", "dave")
	if err != nil {
		t.Fatalf("downvote: %v", err)
	}
	if res.Approved {
		t.Fatalf("downvotes at threshold must reject: %+v", res)
	}
}

func TestDownvote_SuspendsInitiatorUnconditionally(t *testing.T) {
	// One downvote is enough to strip the onboarding bank of voting rights,
	// independent of the complaint threshold. This mirrors the production
	// rule as-is; see DESIGN.md.
	l := newLedger(t, bankAddrs(9)...)
	ctx := context.Background()

	if err := l.AddCustomer(ctx, "bank-0", "eve", "fp"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := l.AddRequest(ctx, "bank-0", "eve", "fp"); err != nil {
		t.Fatalf("add request: %v", err)
	}

	res, err := l.Downvote(ctx, "bank-1", "eve")
	if err != nil {
		t.Fatalf("downvote: %v", err)
	}
	if !res.InitiatorSuspended {
		t.Fatalf("expected initiator suspension to be reported: %+v", res)
	}

	bank, err := l.BankDetails(ctx, "bank-0")
	if err != nil {
		t.Fatalf("bank details: %v", err)
	}
	if bank.Eligible {
		t.Fatal("initiating bank still eligible after a downvote")
	}

	// The suspended bank can no longer act.
	if err := l.AddCustomer(ctx, "bank-0", "frank", "fp"); !errors.Is(err, ErrBankNotEligible) {
		t.Fatalf("expected ErrBankNotEligible, got %v", err)
	}
}

func TestReportBank_DedupAndThreshold(t *testing.T) {
	// Six banks, threshold = 2: two complaints suspend the target.
	l := newLedger(t, bankAddrs(6)...)
	ctx := context.Background()

	res, err := l.ReportBank(ctx, "bank-1", "bank-0")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if res.Complaints != 1 || !res.Eligible {
		t.Fatalf("after first report: %+v", res)
	}

	if _, err := l.ReportBank(ctx, "bank-1", "bank-0"); !errors.Is(err, ErrAlreadyReported) {
		t.Fatalf("expected ErrAlreadyReported, got %v", err)
	}
	count, _ := l.ComplaintCount(ctx, "bank-0")
	if count != 1 {
		t.Fatalf("complaint counter moved on duplicate report: %d", count)
	}

	res, err = l.ReportBank(ctx, "bank-2", "bank-0")
	if err != nil {
		t.Fatalf("second report: %v", err)
	}
	if res.Complaints != 2 || res.Eligible {
		t.Fatalf("target should be suspended at threshold: %+v", res)
	}
}

func TestSetEligibility_ReinstatementClearsReporters(t *testing.T) {
	l := newLedger(t, bankAddrs(6)...)
	ctx := context.Background()

	if _, err := l.ReportBank(ctx, "bank-1", "bank-0"); err != nil {
		t.Fatalf("report: %v", err)
	}
	if _, err := l.ReportBank(ctx, "bank-2", "bank-0"); err != nil {
		t.Fatalf("report: %v", err)
	}

	if err := l.SetEligibility(ctx, adminAddr, "bank-0", true); err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	bank, err := l.BankDetails(ctx, "bank-0")
	if err != nil {
		t.Fatalf("bank details: %v", err)
	}
	if !bank.Eligible || bank.Complaints != 0 {
		t.Fatalf("reinstated bank not in clean state: %+v", bank)
	}

	// A previous reporter may report again in the new cycle.
	res, err := l.ReportBank(ctx, "bank-1", "bank-0")
	if err != nil {
		t.Fatalf("re-report after reinstatement: %v", err)
	}
	if res.Complaints != 1 {
		t.Fatalf("expected a fresh complaint tally, got %d", res.Complaints)
	}
}

func TestSetEligibility_NotFoundAndAdminOnly(t *testing.T) {
	l := newLedger(t, "bank-0")
	ctx := context.Background()

	if err := l.SetEligibility(ctx, "bank-0", "bank-0", false); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if err := l.SetEligibility(ctx, adminAddr, "ghost", false); !errors.Is(err, ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

func TestRequestQueue_SingleLiveRequest(t *testing.T) {
	l := newLedger(t, "bank-0", "bank-1")
	ctx := context.Background()

	if err := l.AddRequest(ctx, "bank-0", "alice", "fp"); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if err := l.AddCustomer(ctx, "bank-0", "alice", "fp"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := l.AddRequest(ctx, "bank-0", "alice", "fp"); err != nil {
		t.Fatalf("add request: %v", err)
	}
	if err := l.AddRequest(ctx, "bank-1", "alice", "fp"); !errors.Is(err, ErrRequestExists) {
		t.Fatalf("expected ErrRequestExists, got %v", err)
	}

	bank, _ := l.BankDetails(ctx, "bank-0")
	if bank.Requests != 1 {
		t.Fatalf("request counter not incremented: %d", bank.Requests)
	}
}

func TestRemoveRequest_AnyEligibleBank(t *testing.T) {
	// Withdrawal is not tied to the original requester.
	l := newLedger(t, "bank-0", "bank-1")
	ctx := context.Background()

	if err := l.AddCustomer(ctx, "bank-0", "alice", "fp"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := l.AddRequest(ctx, "bank-0", "alice", "fp"); err != nil {
		t.Fatalf("add request: %v", err)
	}
	if err := l.RemoveRequest(ctx, "bank-1", "alice"); err != nil {
		t.Fatalf("withdraw by non-requester: %v", err)
	}
	if err := l.RemoveRequest(ctx, "bank-1", "alice"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestVote_ConcurrentVotersStayConsistent(t *testing.T) {
	const voters = 12
	addrs := bankAddrs(voters + 1)
	l := newLedger(t, addrs...)
	ctx := context.Background()

	initiator := addrs[voters]
	if err := l.AddCustomer(ctx, initiator, "alice", "fp"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	if err := l.AddRequest(ctx, initiator, "alice", "fp"); err != nil {
		t.Fatalf("add request: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.Upvote(ctx, addrs[i], "alice"); err != nil {
				t.Errorf("upvote %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	customer, err := l.ViewCustomer(ctx, initiator, "alice")
	if err != nil {
		t.Fatalf("view customer: %v", err)
	}
	if customer.Upvotes != voters {
		t.Fatalf("expected %d upvotes, got %d", voters, customer.Upvotes)
	}
	if !customer.Approved {
		t.Fatalf("customer should be approved: %+v", customer)
	}
}
