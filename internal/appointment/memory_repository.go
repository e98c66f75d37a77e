package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Appointment
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Appointment)}
}

func (r *memoryRepository) Create(_ context.Context, appointment Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[appointment.ID]; exists {
		return fmt.Errorf("appointment %s exists", appointment.ID)
	}
	r.storage[appointment.ID] = appointment
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appointment, ok := r.storage[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return appointment, nil
}

func (r *memoryRepository) ListByAccount(_ context.Context, accountID string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Appointment
	for _, a := range r.storage {
		if a.AccountID == accountID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appointment, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	if appointment.Status != from {
		return ErrAlreadyFinalized
	}
	appointment.Status = to
	r.storage[id] = appointment
	return nil
}

func (r *memoryRepository) SetMeetLink(_ context.Context, id, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appointment, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	appointment.MeetLink = link
	r.storage[id] = appointment
	return nil
}
