package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu       sync.RWMutex
	balances map[string]int64
	entries  map[string]*Entry
	byAcct   map[string][]string
	// active (non-rejected) entries indexed by purpose:referenceID
	byRef map[string]string
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Store {
	return &inMemoryStore{
		balances: make(map[string]int64),
		entries:  make(map[string]*Entry),
		byAcct:   make(map[string][]string),
		byRef:    make(map[string]string),
	}
}

func refKey(purpose, referenceID string) string {
	return purpose + ":" + referenceID
}

func (s *inMemoryStore) EnsureAccount(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.balances[code]; !exists {
		s.balances[code] = 0
	}
	return nil
}

func (s *inMemoryStore) Balance(_ context.Context, code string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, exists := s.balances[code]
	if !exists {
		return 0, ErrNotFound
	}
	return balance, nil
}

func (s *inMemoryStore) Entries(_ context.Context, code string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, exists := s.balances[code]; !exists {
		return nil, ErrNotFound
	}
	ids := s.byAcct[code]
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.entries[id])
	}
	return out, nil
}

func (s *inMemoryStore) Debit(_ context.Context, code string, amount int64, purpose, referenceID string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, fmt.Errorf("amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[code]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if balance < amount {
		return Entry{}, ErrInsufficientFunds
	}

	balance -= amount
	s.balances[code] = balance

	entry := &Entry{
		ID:               uuid.NewString(),
		AccountCode:      code,
		Amount:           amount,
		Direction:        DirectionDebit,
		Purpose:          purpose,
		Status:           StatusCompleted,
		ReferenceID:      referenceID,
		ResultingBalance: balance,
		CreatedAt:        time.Now().UTC(),
	}
	s.index(entry)
	return *entry, nil
}

func (s *inMemoryStore) Credit(_ context.Context, code string, amount int64, purpose, referenceID, status string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, fmt.Errorf("amount must be positive")
	}
	if status != StatusPending && status != StatusCompleted {
		return Entry{}, fmt.Errorf("invalid credit status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[code]
	if !ok {
		return Entry{}, ErrNotFound
	}

	if existingID, exists := s.byRef[refKey(purpose, referenceID)]; exists {
		return *s.entries[existingID], ErrDuplicateReference
	}

	if status == StatusCompleted {
		balance += amount
		s.balances[code] = balance
	}

	entry := &Entry{
		ID:               uuid.NewString(),
		AccountCode:      code,
		Amount:           amount,
		Direction:        DirectionCredit,
		Purpose:          purpose,
		Status:           status,
		ReferenceID:      referenceID,
		ResultingBalance: balance,
		CreatedAt:        time.Now().UTC(),
	}
	s.index(entry)
	return *entry, nil
}

func (s *inMemoryStore) ResolvePending(_ context.Context, entryID, status string) (Entry, error) {
	if status != StatusCompleted && status != StatusRejected {
		return Entry{}, fmt.Errorf("invalid resolution status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if entry.Status != StatusPending {
		return *entry, ErrAlreadyProcessed
	}

	entry.Status = status
	if status == StatusCompleted {
		balance := s.balances[entry.AccountCode] + entry.Amount
		s.balances[entry.AccountCode] = balance
		entry.ResultingBalance = balance
	} else {
		delete(s.byRef, refKey(entry.Purpose, entry.ReferenceID))
	}
	return *entry, nil
}

func (s *inMemoryStore) index(entry *Entry) {
	s.entries[entry.ID] = entry
	s.byAcct[entry.AccountCode] = append(s.byAcct[entry.AccountCode], entry.ID)
	s.byRef[refKey(entry.Purpose, entry.ReferenceID)] = entry.ID
}
