package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Service owns slot reservation and release. Reservation is a conditional
// flip of the booked flag plus a time-validity check; when the check fails the
// reservation is undone before the error is reported, so an expired slot is
// never left occupied.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a schedule service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source. Useful for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Publish creates the availability for a date with the given slot times.
func (s *Service) Publish(ctx context.Context, date string, times []string) (Availability, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Availability{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if len(times) == 0 {
		return Availability{}, fmt.Errorf("at least one slot time is required")
	}

	seen := make(map[string]bool, len(times))
	slots := make([]Slot, 0, len(times))
	for _, t := range times {
		if _, err := time.Parse(TimeLayout, t); err != nil {
			return Availability{}, fmt.Errorf("invalid slot time %q: %w", t, err)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		slots = append(slots, Slot{Time: t})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })

	availability := Availability{
		ID:        uuid.NewString(),
		Date:      date,
		Active:    true,
		Slots:     slots,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, availability); err != nil {
		return Availability{}, err
	}
	return availability, nil
}

// FreeSlots returns the unbooked slot times for an active availability on the
// given date. Past dates are rejected.
func (s *Service) FreeSlots(ctx context.Context, date string) (Availability, []string, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return Availability{}, nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	today, _ := time.Parse(DateLayout, s.now().Format(DateLayout))
	if day.Before(today) {
		return Availability{}, nil, ErrSlotExpired
	}

	availability, err := s.repo.GetByDate(ctx, date)
	if err != nil {
		return Availability{}, nil, err
	}
	if !availability.Active {
		return Availability{}, nil, ErrNotFound
	}

	var free []string
	for _, slot := range availability.Slots {
		if !slot.Booked {
			free = append(free, slot.Time)
		}
	}
	return availability, free, nil
}

// Reserve atomically claims the slot, then validates it has not already
// passed. An expired claim is released before ErrSlotExpired is returned.
func (s *Service) Reserve(ctx context.Context, availabilityID, slotTime string) (Availability, error) {
	if err := s.repo.Reserve(ctx, availabilityID, slotTime); err != nil {
		return Availability{}, err
	}

	availability, err := s.repo.Get(ctx, availabilityID)
	if err != nil {
		_ = s.repo.Release(ctx, availabilityID, slotTime)
		return Availability{}, err
	}

	at, err := availability.SlotTime(slotTime)
	if err != nil {
		_ = s.repo.Release(ctx, availabilityID, slotTime)
		return Availability{}, fmt.Errorf("invalid slot time %q: %w", slotTime, err)
	}
	if at.Before(s.now()) {
		_ = s.repo.Release(ctx, availabilityID, slotTime)
		return Availability{}, ErrSlotExpired
	}

	return availability, nil
}

// Release frees a slot. Idempotent: releasing a free slot is a no-op.
func (s *Service) Release(ctx context.Context, availabilityID, slotTime string) error {
	return s.repo.Release(ctx, availabilityID, slotTime)
}

// Delete removes an availability entirely.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// PurgePast deletes all availabilities dated before today.
func (s *Service) PurgePast(ctx context.Context) (int64, error) {
	return s.repo.PurgeBefore(ctx, s.now().Format(DateLayout))
}
