package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindhaven/mindhaven/internal/ledger"
)

const statusActive = "active"

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo   Repository
	ledger ledger.Store
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledger ledger.Store) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Ensure provisions a wallet and associated ledger account for the owner if
// one does not exist yet, and returns it. Safe to call on every request.
func (s *Service) Ensure(ctx context.Context, ownerID string) (Wallet, error) {
	if ownerID == "" {
		return Wallet{}, fmt.Errorf("owner id is required")
	}

	if w, err := s.repo.GetByOwner(ctx, ownerID); err == nil {
		return w, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}

	accountCode := AccountCode(ownerID)
	if err := s.ledger.EnsureAccount(ctx, accountCode); err != nil {
		return Wallet{}, err
	}

	w := Wallet{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		AccountCode: accountCode,
		Currency:    "INR",
		Status:      statusActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	return s.repo.GetByOwner(ctx, ownerID)
}

// Balance returns the current ledger balance for the owner's wallet.
func (s *Service) Balance(ctx context.Context, ownerID string) (Balance, error) {
	w, err := s.Ensure(ctx, ownerID)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, w.AccountCode)
	if err != nil {
		return Balance{}, err
	}
	return Balance{OwnerID: ownerID, Amount: amount, AsOf: time.Now().UTC()}, nil
}

// Entries returns the owner's ledger history.
func (s *Service) Entries(ctx context.Context, ownerID string) ([]ledger.Entry, error) {
	w, err := s.Ensure(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Entries(ctx, w.AccountCode)
}

// AccountCode derives the ledger account code for an owner.
func AccountCode(ownerID string) string {
	return fmt.Sprintf("wallet:%s", ownerID)
}
