package consortium

import "time"

// Bank represents a consortium member keyed by its unique address.
type Bank struct {
	Address       string
	Name          string
	RegNumber     string
	Complaints    int
	Requests      int
	Eligible      bool
	AccessKeyHash []byte
	CreatedAt     time.Time
}

// Customer is a shared KYC subject keyed by username. Approved is derived
// state and only ever written by the vote operations.
type Customer struct {
	Username    string
	Fingerprint string
	InitiatedBy string
	Approved    bool
	Upvotes     int
	Downvotes   int
	CreatedAt   time.Time
}

// KYCRequest is a pending verification of a customer fingerprint. At most one
// live request exists per username.
type KYCRequest struct {
	Username    string
	Fingerprint string
	RequestedBy string
	CreatedAt   time.Time
}

// VoteResult snapshots a customer's tallies immediately after a vote.
type VoteResult struct {
	Username           string
	Upvotes            int
	Downvotes          int
	Threshold          int
	Approved           bool
	InitiatorSuspended bool
}

// ReportResult snapshots a bank's standing immediately after a complaint.
type ReportResult struct {
	Target     string
	Complaints int
	Threshold  int
	Eligible   bool
}
