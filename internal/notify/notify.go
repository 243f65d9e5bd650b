package notify

import (
	"context"

	"github.com/Domenick1991/skybook/internal/kafka"
	"go.uber.org/zap"
)

// Sender turns engine events into passenger notifications. Delivery is a structured log line;
// events without a recipient are skipped.
type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, event kafka.Event) error {
	if event.Email == "" {
		s.log.Debug("notification skipped, no recipient", zap.String("type", event.Type), zap.String("event_id", event.ID))
		return nil
	}

	s.log.Info("notification sent",
		zap.String("to", event.Email),
		zap.String("subject", subject(event)),
		zap.String("pnr", event.PNR),
		zap.Int64("flight_id", event.FlightID),
		zap.Int64("seat_id", event.SeatID),
	)
	return nil
}

func subject(event kafka.Event) string {
	switch event.Type {
	case kafka.EventBookingConfirmed:
		return "Your booking " + event.PNR + " is confirmed"
	case kafka.EventBookingCanceled:
		return "Your booking " + event.PNR + " was cancelled and refunded"
	case kafka.EventPaymentCaptured:
		return "Payment received for booking " + event.PNR
	default:
		return "Booking update: " + event.Type
	}
}
