package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when the account lacks available balance
	// to cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAlreadyProcessed indicates a pending entry was already resolved and
	// therefore the resolution should not be applied a second time.
	ErrAlreadyProcessed = errors.New("entry already processed")

	// ErrDuplicateReference indicates an active entry already exists for the
	// same purpose and reference, so the posting must not be repeated.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrNotFound indicates the requested account or entry does not exist.
	ErrNotFound = errors.New("not found")
)

const (
	// DirectionCredit increases the account balance.
	DirectionCredit = "credit"
	// DirectionDebit decreases the account balance.
	DirectionDebit = "debit"

	// PurposeBooking marks a debit taken when a session is booked.
	PurposeBooking = "booking"
	// PurposeRefund marks a credit returned after a paid session is rejected.
	PurposeRefund = "refund"
	// PurposeRefundReversal marks a debit reclaiming a refund whose rejection
	// lost the status race to a concurrent completion.
	PurposeRefundReversal = "refund_reversal"
	// PurposeTopUp marks a credit requested through the top-up workflow.
	PurposeTopUp = "topup"

	// StatusPending marks an entry awaiting administrative resolution.
	StatusPending = "pending"
	// StatusCompleted marks an entry applied to the balance.
	StatusCompleted = "completed"
	// StatusRejected marks an entry that was refused and never applied.
	StatusRejected = "rejected"
)

// Entry is one immutable record of a balance-affecting event. Only Status and
// ResultingBalance change after creation, and Status moves monotonically from
// pending to completed or rejected.
type Entry struct {
	ID               string
	AccountCode      string
	Amount           int64
	Direction        string
	Purpose          string
	Status           string
	ReferenceID      string
	ResultingBalance int64
	CreatedAt        time.Time
}

// Store defines the contract implemented by ledger backends (e.g. Postgres).
// The account balance is mutated exclusively through Debit, Credit and
// ResolvePending, keeping it equal to the signed sum of completed entries.
type Store interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Entries(ctx context.Context, code string) ([]Entry, error)

	// Debit atomically checks funds, decrements the balance and appends a
	// completed entry. Fails with ErrInsufficientFunds when balance < amount.
	Debit(ctx context.Context, code string, amount int64, purpose, referenceID string) (Entry, error)

	// Credit appends an entry and, when status is completed, increments the
	// balance in the same atomic step. An active entry with the same purpose
	// and reference causes ErrDuplicateReference alongside the existing entry.
	Credit(ctx context.Context, code string, amount int64, purpose, referenceID, status string) (Entry, error)

	// ResolvePending flips a pending entry to completed or rejected exactly
	// once; completion performs the balance increment at that moment. A
	// non-pending entry causes ErrAlreadyProcessed alongside the entry in
	// its current state, so callers can tell which way it already went.
	ResolvePending(ctx context.Context, entryID, status string) (Entry, error)
}
