package appointment

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
	"github.com/mindhaven/mindhaven/internal/schedule"
	"github.com/mindhaven/mindhaven/internal/wallet"
)

// Service orchestrates the booking saga and appointment status transitions.
// Booking runs reserve → validate → debit → create; every step that fails
// after the reservation releases the slot (and reverses the debit) before the
// error is returned, so a failed booking never leaves partial state behind.
type Service struct {
	repo      Repository
	schedule  *schedule.Service
	ledger    ledger.Store
	wallets   *wallet.Service
	notifier  notification.Notifier
	collector *metrics.Collector
	logger    *slog.Logger
	price     int64
}

// NewService constructs an appointment service.
func NewService(repo Repository, scheduleSvc *schedule.Service, ledgerStore ledger.Store,
	wallets *wallet.Service, notifier notification.Notifier, collector *metrics.Collector,
	logger *slog.Logger, price int64) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		schedule:  scheduleSvc,
		ledger:    ledgerStore,
		wallets:   wallets,
		notifier:  notifier,
		collector: collector,
		logger:    logger,
		price:     price,
	}
}

// BookInput captures the data required to book a session.
type BookInput struct {
	AccountID      string
	AvailabilityID string
	Time           string
	TherapyType    string
	SessionType    string
	Notes          string
	PayFromWallet  bool
}

// Book runs the booking saga. Online sessions always debit the wallet;
// offline sessions debit only when the caller opts in.
func (s *Service) Book(ctx context.Context, input BookInput) (Appointment, error) {
	if input.SessionType != SessionOnline && input.SessionType != SessionOffline {
		return Appointment{}, fmt.Errorf("invalid session type %q", input.SessionType)
	}
	paid := input.PayFromWallet || input.SessionType == SessionOnline

	w, err := s.wallets.Ensure(ctx, input.AccountID)
	if err != nil {
		return Appointment{}, err
	}

	availability, err := s.schedule.Reserve(ctx, input.AvailabilityID, input.Time)
	if err != nil {
		s.collector.RecordBookingFailure(failureReason(err))
		return Appointment{}, err
	}

	appointmentID := uuid.NewString()

	if paid {
		if _, err := s.ledger.Debit(ctx, w.AccountCode, s.price, ledger.PurposeBooking, appointmentID); err != nil {
			// The reservation must never survive a failed payment.
			_ = s.schedule.Release(ctx, input.AvailabilityID, input.Time)
			s.collector.RecordBookingFailure(failureReason(err))
			return Appointment{}, err
		}
	}

	appointment := Appointment{
		ID:             appointmentID,
		AccountID:      input.AccountID,
		AvailabilityID: input.AvailabilityID,
		Date:           availability.Date,
		Time:           input.Time,
		TherapyType:    input.TherapyType,
		SessionType:    input.SessionType,
		Notes:          input.Notes,
		Paid:           paid,
		Price:          s.price,
		Status:         StatusConfirmed,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, appointment); err != nil {
		if paid {
			// Reverse the debit; a duplicate reference means a previous
			// attempt already reversed it.
			if _, creditErr := s.ledger.Credit(ctx, w.AccountCode, s.price, ledger.PurposeRefund,
				appointmentID, ledger.StatusCompleted); creditErr != nil && !errors.Is(creditErr, ledger.ErrDuplicateReference) {
				s.logger.Error("booking rollback credit failed", "appointment_id", appointmentID, "error", creditErr)
			}
		}
		_ = s.schedule.Release(ctx, input.AvailabilityID, input.Time)
		s.collector.RecordBookingFailure("persist")
		return Appointment{}, err
	}

	s.collector.RecordBooking()
	s.notify(ctx, notification.Message{
		Kind:        notification.KindBookingConfirmed,
		Destination: input.AccountID,
		ReferenceID: appointmentID,
		Amount:      appointment.Price,
		Body: fmt.Sprintf("Session booked for %s at %s (%s %s)",
			appointment.Date, appointment.Time, appointment.SessionType, appointment.TherapyType),
	})

	return appointment, nil
}

// UpdateStatus finalizes an appointment. Rejecting a paid appointment credits
// the exact original price and frees the slot before the status is persisted;
// the refund credit is deduplicated on the appointment id so a retried
// rejection resumes without double-crediting. A rejection whose status flip
// loses to a concurrent completion has its refund and release reversed.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Appointment, error) {
	appointment, err := s.repo.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if err := Transition(appointment.Status, status); err != nil {
		return Appointment{}, err
	}

	var refunded int64
	if status == StatusRejected {
		if appointment.Paid {
			_, err := s.ledger.Credit(ctx, wallet.AccountCode(appointment.AccountID), appointment.Price,
				ledger.PurposeRefund, appointment.ID, ledger.StatusCompleted)
			switch {
			case err == nil:
				s.collector.RecordRefund()
			case errors.Is(err, ledger.ErrDuplicateReference):
				// A prior attempt already refunded; resume.
			default:
				return Appointment{}, err
			}
			refunded = appointment.Price
		}
		if err := s.schedule.Release(ctx, appointment.AvailabilityID, appointment.Time); err != nil {
			return Appointment{}, err
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusConfirmed, status); err != nil {
		if status == StatusRejected && errors.Is(err, ErrAlreadyFinalized) {
			// A concurrent completion won the status race after the refund
			// and release already ran; put both back.
			s.reverseRejection(ctx, appointment, refunded)
		}
		return Appointment{}, err
	}
	appointment.Status = status

	if status == StatusRejected {
		s.notify(ctx, notification.Message{
			Kind:        notification.KindSessionRejected,
			Destination: appointment.AccountID,
			ReferenceID: appointment.ID,
			Amount:      refunded,
			Body: fmt.Sprintf("Session on %s at %s was rejected; %d refunded to your wallet",
				appointment.Date, appointment.Time, refunded),
		})
	}

	return appointment, nil
}

// SetMeetLink stores the video-call link on an appointment.
func (s *Service) SetMeetLink(ctx context.Context, id, link string) (Appointment, error) {
	if err := s.repo.SetMeetLink(ctx, id, link); err != nil {
		return Appointment{}, err
	}
	return s.repo.Get(ctx, id)
}

// ListMine returns the account's appointments, newest first.
func (s *Service) ListMine(ctx context.Context, accountID string) ([]Appointment, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// reverseRejection undoes the side effects of a rejection whose status flip
// lost to a concurrent completion: the slot is re-reserved and the refund is
// debited back under its own purpose so the clawback does not collide with
// the booking debit or the refund credit. Failures are logged for operator
// reconciliation; there is nothing further to roll back.
func (s *Service) reverseRejection(ctx context.Context, appointment Appointment, refunded int64) {
	if _, err := s.schedule.Reserve(ctx, appointment.AvailabilityID, appointment.Time); err != nil {
		s.logger.Error("rejection reversal could not re-reserve slot",
			"appointment_id", appointment.ID, "error", err)
	}
	if refunded > 0 {
		if _, err := s.ledger.Debit(ctx, wallet.AccountCode(appointment.AccountID), refunded,
			ledger.PurposeRefundReversal, appointment.ID); err != nil {
			s.logger.Error("rejection reversal could not reclaim refund",
				"appointment_id", appointment.ID, "amount", refunded, "error", err)
			return
		}
		s.collector.RecordRefundReversal()
	}
}

func (s *Service) notify(ctx context.Context, message notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, message); err != nil {
		s.logger.Warn("notification send failed", "kind", message.Kind, "error", err)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, schedule.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, schedule.ErrSlotExpired):
		return "slot_expired"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "other"
	}
}
