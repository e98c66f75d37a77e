package schedule

import (
	"errors"
	"time"
)

var (
	// ErrSlotUnavailable occurs when the requested slot does not exist, is
	// already booked, or its availability is inactive.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrSlotExpired occurs when the slot's date and time have already passed.
	ErrSlotExpired = errors.New("slot expired")

	// ErrNotFound indicates the requested availability does not exist.
	ErrNotFound = errors.New("availability not found")
)

// Layouts for the date and slot time fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot is a single bookable time unit on a given date.
type Slot struct {
	Time   string
	Booked bool
}

// Availability is the set of slots published for one date.
type Availability struct {
	ID        string
	Date      string
	Active    bool
	Slots     []Slot
	CreatedAt time.Time
}

// SlotTime resolves the wall-clock instant of a slot on this availability's date.
func (a Availability) SlotTime(slotTime string) (time.Time, error) {
	return time.Parse(DateLayout+" "+TimeLayout, a.Date+" "+slotTime)
}
