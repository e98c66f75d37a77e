package topup

import (
	"errors"
	"time"
)

var (
	// ErrDuplicateReference indicates a non-rejected request already carries
	// the submitted external payment reference.
	ErrDuplicateReference = errors.New("reference already submitted")

	// ErrAlreadyProcessed indicates the request was already resolved.
	ErrAlreadyProcessed = errors.New("request already processed")

	// ErrNotFound indicates the requested top-up does not exist.
	ErrNotFound = errors.New("top-up request not found")
)

const (
	// StatusPending awaits administrative verification.
	StatusPending = "pending"
	// StatusCompleted means the wallet was credited.
	StatusCompleted = "completed"
	// StatusRejected means the request was refused without a balance change.
	StatusRejected = "rejected"
)

// Request is a user-submitted wallet top-up awaiting manual verification.
// Each request is paired with one pending ledger entry; approval resolves
// that entry, which is the sole step that increments the balance.
type Request struct {
	ID        string
	AccountID string
	Amount    int64
	Reference string
	Status    string
	EntryID   string
	CreatedAt time.Time
}
