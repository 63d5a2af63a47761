package consortium

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ledgerLockKey serializes every mutating operation behind a single advisory
// lock, so the database observes the same one-writer model as the in-memory
// ledger.
const ledgerLockKey = 0x4b5943 // "KYC"

// PostgresLedger persists consortium state in PostgreSQL. Each mutating
// operation runs inside one transaction holding the global advisory lock, so
// preconditions and effects are applied against a single consistent snapshot.
type PostgresLedger struct {
	db    *pgxpool.Pool
	admin string
}

// NewPostgres constructs a Postgres-backed ledger with a fixed admin address.
func NewPostgres(db *pgxpool.Pool, admin string) *PostgresLedger {
	return &PostgresLedger{db: db, admin: admin}
}

func (l *PostgresLedger) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}

func (l *PostgresLedger) requireAdmin(caller string) error {
	if caller != l.admin {
		return ErrNotAdmin
	}
	return nil
}

const bankColumns = `address, name, reg_number, complaints, requests, eligible, access_key_hash, created_at`

func scanBank(row pgx.Row) (Bank, error) {
	var (
		bank      Bank
		createdAt time.Time
	)
	if err := row.Scan(&bank.Address, &bank.Name, &bank.RegNumber, &bank.Complaints,
		&bank.Requests, &bank.Eligible, &bank.AccessKeyHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bank{}, ErrBankNotFound
		}
		return Bank{}, err
	}
	bank.CreatedAt = createdAt.UTC()
	return bank, nil
}

// eligibleBank resolves caller to a bank with voting rights within tx.
func eligibleBank(ctx context.Context, tx pgx.Tx, caller string) (Bank, error) {
	bank, err := scanBank(tx.QueryRow(ctx,
		`SELECT `+bankColumns+` FROM banks WHERE address = $1`, caller))
	if err != nil {
		return Bank{}, err
	}
	if !bank.Eligible {
		return Bank{}, ErrBankNotEligible
	}
	return bank, nil
}

func totalBanks(ctx context.Context, tx pgx.Tx) (int, error) {
	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM banks`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (l *PostgresLedger) AddBank(ctx context.Context, caller string, bank Bank) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM banks WHERE address = $1)`, bank.Address).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrBankExists
	}

	createdAt := bank.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.Exec(ctx, `INSERT INTO banks (`+bankColumns+`)
        VALUES ($1, $2, $3, 0, 0, TRUE, $4, $5)`,
		bank.Address, bank.Name, bank.RegNumber, bank.AccessKeyHash, createdAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PostgresLedger) RemoveBank(ctx context.Context, caller, address string) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Vote and complaint records keyed by the removed address are left in
	// place; authorization always resolves through the banks table.
	cmd, err := tx.Exec(ctx, `DELETE FROM banks WHERE address = $1`, address)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBankNotFound
	}
	return tx.Commit(ctx)
}

func (l *PostgresLedger) SetEligibility(ctx context.Context, caller, address string, eligible bool) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	query := `UPDATE banks SET eligible = FALSE WHERE address = $1`
	if eligible {
		// Reinstatement opens a fresh complaint cycle.
		query = `UPDATE banks SET eligible = TRUE, complaints = 0 WHERE address = $1`
	}
	cmd, err := tx.Exec(ctx, query, address)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBankNotFound
	}
	if eligible {
		if _, err := tx.Exec(ctx,
			`DELETE FROM complaint_records WHERE target_address = $1`, address); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (l *PostgresLedger) BankDetails(ctx context.Context, address string) (Bank, error) {
	return scanBank(l.db.QueryRow(ctx,
		`SELECT `+bankColumns+` FROM banks WHERE address = $1`, address))
}

func (l *PostgresLedger) ComplaintCount(ctx context.Context, address string) (int, error) {
	var count int
	if err := l.db.QueryRow(ctx,
		`SELECT complaints FROM banks WHERE address = $1`, address).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrBankNotFound
		}
		return 0, err
	}
	return count, nil
}

func (l *PostgresLedger) TotalBanks(ctx context.Context) (int, error) {
	var count int
	if err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM banks`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

const customerColumns = `username, fingerprint, initiated_by, approved, upvotes, downvotes, created_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var (
		customer  Customer
		createdAt time.Time
	)
	if err := row.Scan(&customer.Username, &customer.Fingerprint, &customer.InitiatedBy,
		&customer.Approved, &customer.Upvotes, &customer.Downvotes, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, err
	}
	customer.CreatedAt = createdAt.UTC()
	return customer, nil
}

func (l *PostgresLedger) AddCustomer(ctx context.Context, caller, username, fingerprint string) error {
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := eligibleBank(ctx, tx, caller); err != nil {
		return err
	}
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE username = $1)`, username).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrCustomerExists
	}
	if _, err := tx.Exec(ctx, `INSERT INTO customers (`+customerColumns+`)
        VALUES ($1, $2, $3, FALSE, 0, 0, $4)`,
		username, fingerprint, caller, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PostgresLedger) ViewCustomer(ctx context.Context, caller, username string) (Customer, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return Customer{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := eligibleBank(ctx, tx, caller); err != nil {
		return Customer{}, err
	}
	customer, err := scanCustomer(tx.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE username = $1`, username))
	if err != nil {
		return Customer{}, err
	}
	return customer, tx.Commit(ctx)
}

func (l *PostgresLedger) ModifyCustomer(ctx context.Context, caller, username, fingerprint string) error {
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := eligibleBank(ctx, tx, caller); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `UPDATE customers
        SET fingerprint = $2, approved = FALSE, upvotes = 0, downvotes = 0
        WHERE username = $1`, username, fingerprint)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM kyc_requests WHERE username = $1`, username); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM vote_records WHERE username = $1`, username); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PostgresLedger) AddRequest(ctx context.Context, caller, username, fingerprint string) error {
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := eligibleBank(ctx, tx, caller); err != nil {
		return err
	}
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE username = $1)`, username).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrCustomerNotFound
	}
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM kyc_requests WHERE username = $1)`, username).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrRequestExists
	}
	if _, err := tx.Exec(ctx, `INSERT INTO kyc_requests (username, fingerprint, requested_by, created_at)
        VALUES ($1, $2, $3, $4)`, username, fingerprint, caller, time.Now().UTC()); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE banks SET requests = requests + 1 WHERE address = $1`, caller); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PostgresLedger) RemoveRequest(ctx context.Context, caller, username string) error {
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := eligibleBank(ctx, tx, caller); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM kyc_requests WHERE username = $1`, username)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return tx.Commit(ctx)
}

func (l *PostgresLedger) PendingRequest(ctx context.Context, caller, username string) (KYCRequest, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return KYCRequest{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := eligibleBank(ctx, tx, caller); err != nil {
		return KYCRequest{}, err
	}
	var (
		req       KYCRequest
		createdAt time.Time
	)
	if err := tx.QueryRow(ctx, `SELECT username, fingerprint, requested_by, created_at
        FROM kyc_requests WHERE username = $1`, username).Scan(
		&req.Username, &req.Fingerprint, &req.RequestedBy, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return KYCRequest{}, ErrRequestNotFound
		}
		return KYCRequest{}, err
	}
	req.CreatedAt = createdAt.UTC()
	return req, tx.Commit(ctx)
}

func (l *PostgresLedger) Upvote(ctx context.Context, caller, username string) (VoteResult, error) {
	return l.vote(ctx, caller, username, true)
}

func (l *PostgresLedger) Downvote(ctx context.Context, caller, username string) (VoteResult, error) {
	return l.vote(ctx, caller, username, false)
}

func (l *PostgresLedger) vote(ctx context.Context, caller, username string, up bool) (VoteResult, error) {
	tx, err := l.begin(ctx)
	if err != nil {
		return VoteResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := eligibleBank(ctx, tx, caller); err != nil {
		return VoteResult{}, err
	}
	customer, err := scanCustomer(tx.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE username = $1`, username))
	if err != nil {
		return VoteResult{}, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vote_records
        WHERE username = $1 AND bank_address = $2)`, username, caller).Scan(&exists); err != nil {
		return VoteResult{}, err
	}
	if exists {
		return VoteResult{}, ErrAlreadyVoted
	}
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM kyc_requests WHERE username = $1)`, username).Scan(&exists); err != nil {
		return VoteResult{}, err
	}
	if !exists {
		return VoteResult{}, ErrNoActiveRequest
	}

	if up {
		customer.Upvotes++
	} else {
		customer.Downvotes++
	}
	banks, err := totalBanks(ctx, tx)
	if err != nil {
		return VoteResult{}, err
	}
	threshold := approvalThreshold(banks)
	customer.Approved = approved(customer.Upvotes, customer.Downvotes, threshold)

	if _, err := tx.Exec(ctx, `UPDATE customers
        SET upvotes = $2, downvotes = $3, approved = $4 WHERE username = $1`,
		username, customer.Upvotes, customer.Downvotes, customer.Approved); err != nil {
		return VoteResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO vote_records (username, bank_address)
        VALUES ($1, $2)`, username, caller); err != nil {
		return VoteResult{}, err
	}

	result := VoteResult{
		Username:  username,
		Upvotes:   customer.Upvotes,
		Downvotes: customer.Downvotes,
		Threshold: threshold,
		Approved:  customer.Approved,
	}

	// Every downvote suspends the onboarding bank outright, with no threshold
	// involved.
	if !up {
		cmd, err := tx.Exec(ctx,
			`UPDATE banks SET eligible = FALSE WHERE address = $1`, customer.InitiatedBy)
		if err != nil {
			return VoteResult{}, err
		}
		result.InitiatorSuspended = cmd.RowsAffected() > 0
	}

	if err := tx.Commit(ctx); err != nil {
		return VoteResult{}, err
	}
	return result, nil
}

func (l *PostgresLedger) ReportBank(ctx context.Context, caller, target string) (ReportResult, error) {
	tx, err := l.begin(ctx)
	if err != nil {
		return ReportResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := eligibleBank(ctx, tx, caller); err != nil {
		return ReportResult{}, err
	}
	targetBank, err := scanBank(tx.QueryRow(ctx,
		`SELECT `+bankColumns+` FROM banks WHERE address = $1`, target))
	if err != nil {
		return ReportResult{}, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM complaint_records
        WHERE target_address = $1 AND reporter_address = $2)`, target, caller).Scan(&exists); err != nil {
		return ReportResult{}, err
	}
	if exists {
		return ReportResult{}, ErrAlreadyReported
	}

	targetBank.Complaints++
	banks, err := totalBanks(ctx, tx)
	if err != nil {
		return ReportResult{}, err
	}
	threshold := approvalThreshold(banks)
	targetBank.Eligible = targetBank.Complaints < threshold

	if _, err := tx.Exec(ctx, `UPDATE banks SET complaints = $2, eligible = $3
        WHERE address = $1`, target, targetBank.Complaints, targetBank.Eligible); err != nil {
		return ReportResult{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO complaint_records (target_address, reporter_address)
        VALUES ($1, $2)`, target, caller); err != nil {
		return ReportResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ReportResult{}, err
	}
	return ReportResult{
		Target:     target,
		Complaints: targetBank.Complaints,
		Threshold:  threshold,
		Eligible:   targetBank.Eligible,
	}, nil
}
