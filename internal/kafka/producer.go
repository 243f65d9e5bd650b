package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCanceled  = "booking_canceled"
	EventHoldCreated      = "hold_created"
	EventHoldExpired      = "hold_expired"
	EventPriceChanged     = "price_changed"
	EventPaymentCaptured  = "payment_captured"
)

// Event is the envelope every engine event travels in. Fields irrelevant to a type stay zero.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	FlightID   int64     `json:"flight_id,omitempty"`
	SeatID     int64     `json:"seat_id,omitempty"`
	BookingID  int64     `json:"booking_id,omitempty"`
	PNR        string    `json:"pnr,omitempty"`
	Email      string    `json:"email,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Price      int64     `json:"price,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(eventType string) Event {
	return Event{ID: uuid.NewString(), Type: eventType, OccurredAt: time.Now().UTC()}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer  messageWriter
	retries uint
	backoff time.Duration
	log     *zap.Logger
}

func NewProducer(brokers []string, retries int, log *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, retries, log)
}

func newProducer(w messageWriter, retries int, log *zap.Logger) *Producer {
	if retries <= 0 {
		retries = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{writer: w, retries: uint(retries), backoff: 100 * time.Millisecond, log: log}
}

// Publish writes one JSON message keyed by key, retrying transient broker errors.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: data, Time: time.Now()}
	err = retry.Retry(func(attempt uint) error {
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.log.Warn("kafka publish attempt failed",
				zap.String("topic", topic), zap.String("key", key), zap.Uint("attempt", attempt+1), zap.Error(err))
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		return nil
	}, strategy.Limit(p.retries), strategy.Backoff(backoff.Linear(p.backoff)))
	if err != nil {
		return fmt.Errorf("failed to write message to kafka after %d attempts: %w", p.retries, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.log.Debug("published to kafka", zap.String("topic", topic), zap.String("key", key))
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
