package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func publishTomorrow(t *testing.T, svc *Service, times ...string) Availability {
	t.Helper()
	date := svc.now().Add(24 * time.Hour).Format(DateLayout)
	availability, err := svc.Publish(context.Background(), date, times)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return availability
}

func TestReserveClaimsSlotOnce(t *testing.T) {
	svc := NewService(NewMemoryRepository()).WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	availability := publishTomorrow(t, svc, "10:00", "11:00")
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, availability.ID, "10:00"); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if _, err := svc.Reserve(ctx, availability.ID, "10:00"); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}
	if _, err := svc.Reserve(ctx, availability.ID, "11:00"); err != nil {
		t.Fatalf("second slot should still be free: %v", err)
	}
}

func TestReserveConcurrentExactlyOneWins(t *testing.T) {
	svc := NewService(NewMemoryRepository()).WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	availability := publishTomorrow(t, svc, "10:00")
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Reserve(ctx, availability.ID, "10:00"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrSlotUnavailable) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}
}

func TestReserveExpiredSlotReleasesClaim(t *testing.T) {
	repo := NewMemoryRepository()
	past := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(repo).WithClock(fixedClock(past))
	availability := publishTomorrow(t, svc, "10:00")
	ctx := context.Background()

	// Move the clock beyond the slot's wall-clock time.
	svc.WithClock(fixedClock(past.Add(48 * time.Hour)))

	if _, err := svc.Reserve(ctx, availability.ID, "10:00"); !errors.Is(err, ErrSlotExpired) {
		t.Fatalf("expected slot expired, got %v", err)
	}

	stored, err := repo.Get(ctx, availability.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Slots[0].Booked {
		t.Fatal("expired reservation must not leave the slot occupied")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	svc := NewService(NewMemoryRepository()).WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	availability := publishTomorrow(t, svc, "10:00")
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, availability.ID, "10:00"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, availability.ID, "10:00"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := svc.Release(ctx, availability.ID, "10:00"); err != nil {
		t.Fatalf("second release must be a no-op: %v", err)
	}
	if _, err := svc.Reserve(ctx, availability.ID, "10:00"); err != nil {
		t.Fatalf("slot should be reservable again: %v", err)
	}
}

func TestFreeSlotsFiltersBooked(t *testing.T) {
	svc := NewService(NewMemoryRepository()).WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	availability := publishTomorrow(t, svc, "10:00", "11:00", "12:00")
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, availability.ID, "11:00"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, free, err := svc.FreeSlots(ctx, availability.Date)
	if err != nil {
		t.Fatalf("free slots: %v", err)
	}
	if len(free) != 2 || free[0] != "10:00" || free[1] != "12:00" {
		t.Fatalf("unexpected free slots: %v", free)
	}
}

func TestFreeSlotsRejectsPastDates(t *testing.T) {
	svc := NewService(NewMemoryRepository()).WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))

	if _, _, err := svc.FreeSlots(context.Background(), "2026-02-27"); !errors.Is(err, ErrSlotExpired) {
		t.Fatalf("expected past date rejection, got %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Publish(ctx, "01-03-2026", []string{"10:00"}); err == nil {
		t.Fatal("expected invalid date error")
	}
	if _, err := svc.Publish(ctx, "2026-03-01", nil); err == nil {
		t.Fatal("expected missing slots error")
	}
	if _, err := svc.Publish(ctx, "2026-03-01", []string{"25:99"}); err == nil {
		t.Fatal("expected invalid slot time error")
	}

	availability, err := svc.Publish(ctx, "2026-03-01", []string{"11:00", "10:00", "11:00"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(availability.Slots) != 2 || availability.Slots[0].Time != "10:00" {
		t.Fatalf("expected sorted deduped slots, got %+v", availability.Slots)
	}
}

func TestPurgePastRemovesOldDates(t *testing.T) {
	repo := NewMemoryRepository()
	early := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(repo).WithClock(fixedClock(early))

	if _, err := svc.Publish(context.Background(), "2026-03-02", []string{"10:00"}); err != nil {
		t.Fatalf("publish future: %v", err)
	}
	if _, err := svc.Publish(context.Background(), "2026-02-20", []string{"10:00"}); err != nil {
		t.Fatalf("publish past: %v", err)
	}

	purged, err := svc.PurgePast(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged availability, got %d", purged)
	}
	if _, err := repo.GetByDate(context.Background(), "2026-03-02"); err != nil {
		t.Fatalf("future availability must survive: %v", err)
	}
}
