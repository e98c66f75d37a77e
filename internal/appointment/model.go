package appointment

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyFinalized indicates the appointment already reached a
	// terminal status and cannot transition again.
	ErrAlreadyFinalized = errors.New("appointment already finalized")

	// ErrInvalidStatus indicates the requested transition target is not a
	// recognised terminal status.
	ErrInvalidStatus = errors.New("invalid appointment status")

	// ErrNotFound indicates the requested appointment does not exist.
	ErrNotFound = errors.New("appointment not found")
)

const (
	// StatusConfirmed is the initial status of every booked session.
	StatusConfirmed = "confirmed"
	// StatusRejected is terminal; reaching it refunds paid sessions and frees the slot.
	StatusRejected = "rejected"
	// StatusCompleted is terminal with no financial side effects.
	StatusCompleted = "completed"

	// SessionOnline sessions are always paid from the wallet.
	SessionOnline = "online"
	// SessionOffline sessions may be paid in person.
	SessionOffline = "offline"
)

// Appointment is a booked session occupying one slot.
type Appointment struct {
	ID             string
	AccountID      string
	AvailabilityID string
	Date           string
	Time           string
	TherapyType    string
	SessionType    string
	Notes          string
	Paid           bool
	Price          int64
	Status         string
	MeetLink       string
	CreatedAt      time.Time
}

// Transition validates a status change. Confirmed may move to rejected or
// completed; both of those are terminal.
func Transition(current, next string) error {
	if current == StatusRejected || current == StatusCompleted {
		return ErrAlreadyFinalized
	}
	if next != StatusRejected && next != StatusCompleted {
		return ErrInvalidStatus
	}
	return nil
}
