package topup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mindhaven/mindhaven/internal/ledger"
	"github.com/mindhaven/mindhaven/internal/metrics"
	"github.com/mindhaven/mindhaven/internal/notification"
	"github.com/mindhaven/mindhaven/internal/wallet"
)

// Service orchestrates the top-up workflow: a pending request paired with a
// pending ledger entry, resolved exactly once by an administrator. Resolving
// the entry is the only step that touches the balance, so a retried approval
// after a partial write repairs the request flip without crediting again.
type Service struct {
	repo      Repository
	ledger    ledger.Store
	wallets   *wallet.Service
	notifier  notification.Notifier
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewService constructs a top-up service.
func NewService(repo Repository, ledgerStore ledger.Store, wallets *wallet.Service,
	notifier notification.Notifier, collector *metrics.Collector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		ledger:    ledgerStore,
		wallets:   wallets,
		notifier:  notifier,
		collector: collector,
		logger:    logger,
	}
}

// Submit records a pending top-up request and its paired pending ledger
// entry. The duplicate-reference guard runs before any ledger write.
func (s *Service) Submit(ctx context.Context, accountID string, amount int64, reference string) (Request, error) {
	if amount <= 0 {
		return Request{}, fmt.Errorf("amount must be positive")
	}
	if reference == "" {
		return Request{}, fmt.Errorf("payment reference is required")
	}

	w, err := s.wallets.Ensure(ctx, accountID)
	if err != nil {
		return Request{}, err
	}

	request := Request{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Amount:    amount,
		Reference: reference,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return Request{}, err
	}

	entry, err := s.ledger.Credit(ctx, w.AccountCode, amount, ledger.PurposeTopUp, request.ID, ledger.StatusPending)
	if err != nil && !errors.Is(err, ledger.ErrDuplicateReference) {
		return Request{}, err
	}
	if err := s.repo.SetEntry(ctx, request.ID, entry.ID); err != nil {
		return Request{}, err
	}
	request.EntryID = entry.ID

	s.collector.RecordTopUpSubmitted()
	return request, nil
}

// Approve credits the wallet for a pending request exactly once.
func (s *Service) Approve(ctx context.Context, id string) (Request, error) {
	request, err := s.resolve(ctx, id, StatusCompleted)
	if err != nil {
		return Request{}, err
	}

	s.collector.RecordTopUpResolved(StatusCompleted)
	s.notify(ctx, notification.Message{
		Kind:        notification.KindTopUpApproved,
		Destination: request.AccountID,
		ReferenceID: request.ID,
		Amount:      request.Amount,
		Body:        fmt.Sprintf("Top-up of %d credited to your wallet", request.Amount),
	})
	return request, nil
}

// Reject refuses a pending request; the paired entry is marked rejected and
// the balance never changes.
func (s *Service) Reject(ctx context.Context, id string) (Request, error) {
	request, err := s.resolve(ctx, id, StatusRejected)
	if err != nil {
		return Request{}, err
	}

	s.collector.RecordTopUpResolved(StatusRejected)
	s.notify(ctx, notification.Message{
		Kind:        notification.KindTopUpRejected,
		Destination: request.AccountID,
		ReferenceID: request.ID,
		Amount:      request.Amount,
		Body:        fmt.Sprintf("Top-up request for %d was rejected", request.Amount),
	})
	return request, nil
}

func (s *Service) resolve(ctx context.Context, id, status string) (Request, error) {
	request, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if request.Status != StatusPending {
		return Request{}, ErrAlreadyProcessed
	}

	if request.EntryID != "" {
		entry, err := s.ledger.ResolvePending(ctx, request.EntryID, status)
		switch {
		case err == nil:
		case errors.Is(err, ledger.ErrAlreadyProcessed):
			// A previous attempt resolved the entry but crashed before
			// flipping the request. The retry may only finish in the same
			// direction; resolving the other way would desync the request
			// from its entry and the balance.
			if entry.Status != status {
				return Request{}, ErrAlreadyProcessed
			}
		default:
			return Request{}, err
		}
	} else if status == StatusCompleted {
		// The paired entry was never written; repair by crediting directly,
		// deduplicated on the request id.
		if _, err := s.ledger.Credit(ctx, wallet.AccountCode(request.AccountID), request.Amount,
			ledger.PurposeTopUp, request.ID, ledger.StatusCompleted); err != nil &&
			!errors.Is(err, ledger.ErrDuplicateReference) {
			return Request{}, err
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusPending, status); err != nil {
		return Request{}, err
	}
	request.Status = status
	return request, nil
}

// ListPending returns all requests awaiting verification, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]Request, error) {
	return s.repo.ListByStatus(ctx, StatusPending)
}

// ListMine returns the account's requests, newest first.
func (s *Service) ListMine(ctx context.Context, accountID string) ([]Request, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

func (s *Service) notify(ctx context.Context, message notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, message); err != nil {
		s.logger.Warn("notification send failed", "kind", message.Kind, "error", err)
	}
}
