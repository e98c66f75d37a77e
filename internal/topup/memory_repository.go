package topup

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu      sync.Mutex
	storage map[string]Request
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Request)}
}

func (r *memoryRepository) Create(_ context.Context, request Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[request.ID]; exists {
		return fmt.Errorf("request %s exists", request.ID)
	}
	for _, existing := range r.storage {
		if existing.Reference == request.Reference && existing.Status != StatusRejected {
			return ErrDuplicateReference
		}
	}
	r.storage[request.ID] = request
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.storage[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return request, nil
}

func (r *memoryRepository) ListByStatus(_ context.Context, status string) ([]Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Request
	for _, request := range r.storage {
		if request.Status == status {
			out = append(out, request)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) ListByAccount(_ context.Context, accountID string) ([]Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Request
	for _, request := range r.storage {
		if request.AccountID == accountID {
			out = append(out, request)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) SetEntry(_ context.Context, id, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	request.EntryID = entryID
	r.storage[id] = request
	return nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	if request.Status != from {
		return ErrAlreadyProcessed
	}
	request.Status = to
	r.storage[id] = request
	return nil
}
