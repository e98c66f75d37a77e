package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/mindhaven/mindhaven/internal/ledger"
)

func TestServiceEnsureAndBalance(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	ownerID := uuid.NewString()
	wallet, err := svc.Ensure(ctx, ownerID)
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if wallet.AccountCode != AccountCode(ownerID) {
		t.Fatalf("expected account code %s, got %s", AccountCode(ownerID), wallet.AccountCode)
	}

	ledger.SeedBalance(led, wallet.AccountCode, 2_500)

	balance, err := svc.Balance(ctx, ownerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != 2_500 {
		t.Fatalf("expected balance 2500, got %d", balance.Amount)
	}
}

func TestServiceEnsureIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	ownerID := uuid.NewString()
	first, err := svc.Ensure(ctx, ownerID)
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	second, err := svc.Ensure(ctx, ownerID)
	if err != nil {
		t.Fatalf("ensure wallet again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same wallet, got %s and %s", first.ID, second.ID)
	}
}

func TestServiceEnsureRequiresOwner(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	if _, err := svc.Ensure(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty owner id")
	}
}

func TestServiceEntries(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	ownerID := uuid.NewString()
	wallet, err := svc.Ensure(ctx, ownerID)
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	ledger.SeedBalance(led, wallet.AccountCode, 1_000)
	if _, err := led.Debit(ctx, wallet.AccountCode, 400, ledger.PurposeBooking, uuid.NewString()); err != nil {
		t.Fatalf("debit: %v", err)
	}

	entries, err := svc.Entries(ctx, ownerID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Direction != ledger.DirectionDebit || entries[0].Amount != 400 {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}
