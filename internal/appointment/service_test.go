package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mindhaven/mindhaven/internal/ledger"
	"github.com/mindhaven/mindhaven/internal/logging"
	"github.com/mindhaven/mindhaven/internal/metrics"
	"github.com/mindhaven/mindhaven/internal/notification"
	"github.com/mindhaven/mindhaven/internal/schedule"
	"github.com/mindhaven/mindhaven/internal/wallet"
)

const sessionPrice = 500

type testNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *testNotifier) last() (notification.Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return notification.Message{}, false
	}
	return n.messages[len(n.messages)-1], true
}

type fixture struct {
	svc       *Service
	schedule  *schedule.Service
	scheduleR schedule.Repository
	ledger    ledger.Store
	wallets   *wallet.Service
	notifier  *testNotifier
	account   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	led := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led)
	scheduleRepo := schedule.NewMemoryRepository()
	scheduleSvc := schedule.NewService(scheduleRepo).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) })
	notifier := &testNotifier{}
	svc := NewService(NewMemoryRepository(), scheduleSvc, led, wallets, notifier,
		metrics.NewCollector(), logging.Discard(), sessionPrice)

	return &fixture{
		svc:       svc,
		schedule:  scheduleSvc,
		scheduleR: scheduleRepo,
		ledger:    led,
		wallets:   wallets,
		notifier:  notifier,
		account:   uuid.NewString(),
	}
}

func (f *fixture) publish(t *testing.T, times ...string) schedule.Availability {
	t.Helper()
	availability, err := f.schedule.Publish(context.Background(), "2026-03-02", times)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return availability
}

func (f *fixture) fund(t *testing.T, amount int64) {
	t.Helper()
	if _, err := f.wallets.Ensure(context.Background(), f.account); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	ledger.SeedBalance(f.ledger, wallet.AccountCode(f.account), amount)
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	balance, err := f.ledger.Balance(context.Background(), wallet.AccountCode(f.account))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance
}

func (f *fixture) slotBooked(t *testing.T, availabilityID, slotTime string) bool {
	t.Helper()
	availability, err := f.scheduleR.Get(context.Background(), availabilityID)
	if err != nil {
		t.Fatalf("get availability: %v", err)
	}
	for _, slot := range availability.Slots {
		if slot.Time == slotTime {
			return slot.Booked
		}
	}
	t.Fatalf("slot %s not found", slotTime)
	return false
}

func TestBookOnlineSessionDebitsWallet(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 1_000)

	appointment, err := f.svc.Book(context.Background(), BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		TherapyType:    "individual",
		SessionType:    SessionOnline,
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	if !appointment.Paid || appointment.Status != StatusConfirmed {
		t.Fatalf("unexpected appointment: %+v", appointment)
	}
	if got := f.balance(t); got != 500 {
		t.Fatalf("expected balance 500, got %d", got)
	}
	if !f.slotBooked(t, availability.ID, "10:00") {
		t.Fatal("slot must be occupied after booking")
	}
	if msg, ok := f.notifier.last(); !ok || msg.Kind != notification.KindBookingConfirmed {
		t.Fatalf("expected booking confirmation notification, got %+v", msg)
	}
}

func TestBookOfflineSessionSkipsWallet(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 1_000)

	appointment, err := f.svc.Book(context.Background(), BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		SessionType:    SessionOffline,
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	if appointment.Paid {
		t.Fatal("offline session without wallet opt-in must not be paid")
	}
	if got := f.balance(t); got != 1_000 {
		t.Fatalf("balance must be untouched, got %d", got)
	}
}

func TestBookOccupiedSlotFailsCleanly(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 1_000)

	input := BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		SessionType:    SessionOnline,
	}
	if _, err := f.svc.Book(context.Background(), input); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := f.svc.Book(context.Background(), input); !errors.Is(err, schedule.ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}

	// Only the first booking's debit applies.
	if got := f.balance(t); got != 500 {
		t.Fatalf("expected balance 500, got %d", got)
	}
}

func TestBookInsufficientFundsReleasesSlot(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 100)

	_, err := f.svc.Book(context.Background(), BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		SessionType:    SessionOnline,
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	if f.slotBooked(t, availability.ID, "10:00") {
		t.Fatal("slot must not survive a failed payment")
	}
	if got := f.balance(t); got != 100 {
		t.Fatalf("balance must be untouched, got %d", got)
	}
}

func TestBookExpiredSlotReleasesSlot(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 1_000)

	// Move past the slot's wall-clock time.
	f.schedule.WithClock(func() time.Time { return time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC) })

	_, err := f.svc.Book(context.Background(), BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		SessionType:    SessionOnline,
	})
	if !errors.Is(err, schedule.ErrSlotExpired) {
		t.Fatalf("expected slot expired, got %v", err)
	}
	if f.slotBooked(t, availability.ID, "10:00") {
		t.Fatal("expired reservation must be released")
	}
	if got := f.balance(t); got != 1_000 {
		t.Fatalf("balance must be untouched, got %d", got)
	}
}

func TestRejectPaidAppointmentRefundsAndFreesSlot(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 1_000)

	appointment, err := f.svc.Book(context.Background(), BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		SessionType:    SessionOnline,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if got := f.balance(t); got != 500 {
		t.Fatalf("expected balance 500 after booking, got %d", got)
	}

	updated, err := f.svc.UpdateStatus(context.Background(), appointment.ID, StatusRejected)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if updated.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", updated.Status)
	}
	if got := f.balance(t); got != 1_000 {
		t.Fatalf("refund must restore balance to 1000, got %d", got)
	}
	if f.slotBooked(t, availability.ID, "10:00") {
		t.Fatal("slot must be free after rejection")
	}
	if msg, ok := f.notifier.last(); !ok || msg.Kind != notification.KindSessionRejected || msg.Amount != sessionPrice {
		t.Fatalf("expected rejection notification with refund amount, got %+v", msg)
	}
}

func TestRejectUnpaidAppointmentSkipsRefund(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 1_000)

	appointment, err := f.svc.Book(context.Background(), BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		SessionType:    SessionOffline,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), appointment.ID, StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := f.balance(t); got != 1_000 {
		t.Fatalf("unpaid rejection must not change balance, got %d", got)
	}

	entries, _ := f.ledger.Entries(context.Background(), wallet.AccountCode(f.account))
	for _, e := range entries {
		if e.Purpose == ledger.PurposeRefund {
			t.Fatalf("unexpected refund entry: %+v", e)
		}
	}
}

// raceRepo completes the appointment right before a rejection's status flip
// runs, standing in for a concurrent administrator winning the race.
type raceRepo struct {
	Repository
	target string
	once   sync.Once
}

func (r *raceRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	if to == StatusRejected {
		r.once.Do(func() {
			_ = r.Repository.UpdateStatus(ctx, r.target, StatusConfirmed, StatusCompleted)
		})
	}
	return r.Repository.UpdateStatus(ctx, id, from, to)
}

func TestRejectLosingRaceToCompletionIsReversed(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led)
	scheduleRepo := schedule.NewMemoryRepository()
	scheduleSvc := schedule.NewService(scheduleRepo).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) })
	repo := &raceRepo{Repository: NewMemoryRepository()}
	svc := NewService(repo, scheduleSvc, led, wallets, &testNotifier{},
		metrics.NewCollector(), logging.Discard(), sessionPrice)

	availability, err := scheduleSvc.Publish(ctx, "2026-03-02", []string{"10:00"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	account := uuid.NewString()
	if _, err := wallets.Ensure(ctx, account); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	ledger.SeedBalance(led, wallet.AccountCode(account), 1_000)

	booked, err := svc.Book(ctx, BookInput{
		AccountID:      account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		TherapyType:    "individual",
		SessionType:    SessionOnline,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	repo.target = booked.ID

	if _, err := svc.UpdateStatus(ctx, booked.ID, StatusRejected); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}

	stored, err := repo.Get(ctx, booked.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if stored.Status != StatusCompleted {
		t.Fatalf("concurrent completion must stand, got %s", stored.Status)
	}

	// The refund is clawed back and the slot is booked again.
	balance, err := led.Balance(ctx, wallet.AccountCode(account))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1_000-sessionPrice {
		t.Fatalf("expected balance %d, got %d", 1_000-sessionPrice, balance)
	}
	after, err := scheduleRepo.Get(ctx, availability.ID)
	if err != nil {
		t.Fatalf("get availability: %v", err)
	}
	if len(after.Slots) != 1 || !after.Slots[0].Booked {
		t.Fatalf("expected slot re-reserved, got %+v", after.Slots)
	}

	// The ledger keeps the refund/reversal pair as an audit trail.
	entries, err := led.Entries(ctx, wallet.AccountCode(account))
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	var refunds, reversals int
	for _, e := range entries {
		switch e.Purpose {
		case ledger.PurposeRefund:
			refunds++
		case ledger.PurposeRefundReversal:
			reversals++
		}
	}
	if refunds != 1 || reversals != 1 {
		t.Fatalf("expected one refund and one reversal, got %d and %d", refunds, reversals)
	}
}

func TestUpdateStatusIsTerminal(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 1_000)

	appointment, err := f.svc.Book(context.Background(), BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		SessionType:    SessionOnline,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), appointment.ID, StatusRejected); err != nil {
		t.Fatalf("first reject: %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), appointment.ID, StatusRejected); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected already finalized, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), appointment.ID, StatusCompleted); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected already finalized, got %v", err)
	}

	// Exactly one refund despite the retries.
	if got := f.balance(t); got != 1_000 {
		t.Fatalf("expected balance 1000, got %d", got)
	}
}

func TestCompleteHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 1_000)

	appointment, err := f.svc.Book(context.Background(), BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		SessionType:    SessionOnline,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	updated, err := f.svc.UpdateStatus(context.Background(), appointment.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if got := f.balance(t); got != 500 {
		t.Fatalf("completion must not refund, got %d", got)
	}
	if !f.slotBooked(t, availability.ID, "10:00") {
		t.Fatal("completion must not free the slot")
	}
}

func TestUpdateStatusRejectsInvalidTarget(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")
	f.fund(t, 1_000)

	appointment, err := f.svc.Book(context.Background(), BookInput{
		AccountID:      f.account,
		AvailabilityID: availability.ID,
		Time:           "10:00",
		SessionType:    SessionOnline,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), appointment.ID, "confirmed"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestConcurrentBookingsSameSlot(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00")

	const workers = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		account := uuid.NewString()
		if _, err := f.wallets.Ensure(context.Background(), account); err != nil {
			t.Fatalf("ensure wallet: %v", err)
		}
		ledger.SeedBalance(f.ledger, wallet.AccountCode(account), 10_000)

		wg.Add(1)
		go func(account string, i int) {
			defer wg.Done()
			_, err := f.svc.Book(context.Background(), BookInput{
				AccountID:      account,
				AvailabilityID: availability.ID,
				Time:           "10:00",
				SessionType:    SessionOnline,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, schedule.ErrSlotUnavailable) {
				t.Errorf("booking %d unexpected error: %v", i, err)
			}
		}(account, i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one successful booking, got %d", succeeded)
	}
}

func TestListMineNewestFirst(t *testing.T) {
	f := newFixture(t)
	availability := f.publish(t, "10:00", "11:00")
	f.fund(t, 10_000)

	for _, slot := range []string{"10:00", "11:00"} {
		if _, err := f.svc.Book(context.Background(), BookInput{
			AccountID:      f.account,
			AvailabilityID: availability.ID,
			Time:           slot,
			SessionType:    SessionOnline,
		}); err != nil {
			t.Fatalf("book %s: %v", slot, err)
		}
	}

	mine, err := f.svc.ListMine(context.Background(), f.account)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(mine))
	}
	for i, a := range mine {
		if a.AccountID != f.account {
			t.Fatalf("appointment %d belongs to %s", i, a.AccountID)
		}
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		current, next string
		want          error
	}{
		{StatusConfirmed, StatusRejected, nil},
		{StatusConfirmed, StatusCompleted, nil},
		{StatusConfirmed, StatusConfirmed, ErrInvalidStatus},
		{StatusConfirmed, "cancelled", ErrInvalidStatus},
		{StatusRejected, StatusCompleted, ErrAlreadyFinalized},
		{StatusCompleted, StatusRejected, ErrAlreadyFinalized},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.current, tc.next), func(t *testing.T) {
			if got := Transition(tc.current, tc.next); !errors.Is(got, tc.want) {
				t.Fatalf("Transition(%s, %s) = %v, want %v", tc.current, tc.next, got, tc.want)
			}
		})
	}
}
