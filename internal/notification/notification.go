package notification

import (
	"context"
	"log/slog"
)

const (
	// KindBookingConfirmed indicates a session was booked.
	KindBookingConfirmed = "booking_confirmed"
	// KindSessionRejected indicates a booked session was rejected by an administrator.
	KindSessionRejected = "session_rejected"
	// KindTopUpApproved indicates a wallet top-up was credited.
	KindTopUpApproved = "topup_approved"
	// KindTopUpRejected indicates a wallet top-up was refused.
	KindTopUpRejected = "topup_rejected"
)

// Message describes a notification payload emitted after the transactional
// core has committed. Delivery is best effort and never blocks or fails the
// originating operation.
type Message struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Body        string `json:"body"`
	ReferenceID string `json:"reference_id,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"reference_id", message.ReferenceID,
		"body", message.Body)
	return nil
}
