package wallet

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byOwner map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byOwner: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byOwner[wallet.OwnerID]; exists {
		return nil
	}
	r.byOwner[wallet.OwnerID] = wallet
	return nil
}

func (r *memoryRepository) GetByOwner(_ context.Context, ownerID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return wallet, nil
}
