package schedule

import (
	"context"
	"fmt"
	"sync"
)

type memoryRepository struct {
	mu     sync.Mutex
	byID   map[string]*Availability
	byDate map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:   make(map[string]*Availability),
		byDate: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, availability Availability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byDate[availability.Date]; exists {
		return fmt.Errorf("availability for %s exists", availability.Date)
	}
	stored := availability
	stored.Slots = append([]Slot(nil), availability.Slots...)
	r.byID[stored.ID] = &stored
	r.byDate[stored.Date] = stored.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return Availability{}, ErrNotFound
	}
	return snapshot(a), nil
}

func (r *memoryRepository) GetByDate(_ context.Context, date string) (Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byDate[date]
	if !ok {
		return Availability{}, ErrNotFound
	}
	return snapshot(r.byID[id]), nil
}

func (r *memoryRepository) Reserve(_ context.Context, availabilityID, slotTime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[availabilityID]
	if !ok || !a.Active {
		return ErrSlotUnavailable
	}
	for i := range a.Slots {
		if a.Slots[i].Time != slotTime {
			continue
		}
		if a.Slots[i].Booked {
			return ErrSlotUnavailable
		}
		a.Slots[i].Booked = true
		return nil
	}
	return ErrSlotUnavailable
}

func (r *memoryRepository) Release(_ context.Context, availabilityID, slotTime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[availabilityID]
	if !ok {
		return nil
	}
	for i := range a.Slots {
		if a.Slots[i].Time == slotTime {
			a.Slots[i].Booked = false
			return nil
		}
	}
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byDate, a.Date)
	delete(r.byID, id)
	return nil
}

func (r *memoryRepository) PurgeBefore(_ context.Context, date string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for id, a := range r.byID {
		if a.Date < date {
			delete(r.byDate, a.Date)
			delete(r.byID, id)
			purged++
		}
	}
	return purged, nil
}

func snapshot(a *Availability) Availability {
	out := *a
	out.Slots = append([]Slot(nil), a.Slots...)
	return out
}
