package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/kafka"
	"github.com/Domenick1991/skybook/internal/repository"
	"go.uber.org/zap"
)

const (
	SurgeThreshold  = 3
	SurgeWindow     = 5 * time.Minute
	DecayWindow     = 10 * time.Minute
	SurgeMultiplier = 1.10
)

type PricingUseCase interface {
	RecordAttempt(ctx context.Context, flightID int64, userID string) (*domain.PriceQuote, error)
	GetCurrentPrice(ctx context.Context, flightID int64) (*domain.PriceQuote, error)
	DecayIdle(ctx context.Context) ([]int64, error)
}

// Cache is the slice of the search cache holding prices that a surge write makes stale.
type Cache interface {
	InvalidateSearch(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// PricingService is the only writer of a flight's current price.
type PricingService struct {
	flights  repository.FlightRepository
	attempts repository.AttemptRepository
	tx       repository.TxManager
	cache    Cache
	producer Producer
	topic    string
	now      func() time.Time
	log      *zap.Logger
}

type PricingServiceOption func(*PricingService)

func WithCache(c Cache) PricingServiceOption {
	return func(s *PricingService) {
		s.cache = c
	}
}

func WithProducer(p Producer, topic string) PricingServiceOption {
	return func(s *PricingService) {
		s.producer = p
		s.topic = topic
	}
}

func WithClock(now func() time.Time) PricingServiceOption {
	return func(s *PricingService) {
		s.now = now
	}
}

func WithLogger(log *zap.Logger) PricingServiceOption {
	return func(s *PricingService) {
		s.log = log
	}
}

func NewPricingService(flights repository.FlightRepository, attempts repository.AttemptRepository, tx repository.TxManager, opts ...PricingServiceOption) *PricingService {
	s := &PricingService{
		flights:  flights,
		attempts: attempts,
		tx:       tx,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordAttempt logs one attempt and reprices the flight. The flight row lock serializes concurrent
// attempts so none is missed by the windowed count.
func (s *PricingService) RecordAttempt(ctx context.Context, flightID int64, userID string) (*domain.PriceQuote, error) {
	userID = strings.TrimSpace(userID)
	if flightID <= 0 || userID == "" {
		return nil, domain.ValidationError("flightId and userId required")
	}

	var (
		quote   *domain.PriceQuote
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		flight, err := s.flights.GetForUpdate(ctx, flightID)
		if err != nil {
			return err
		}
		now := s.now()

		recent, err := s.attempts.CountSince(ctx, flightID, userID, now.Add(-SurgeWindow))
		if err != nil {
			return err
		}
		old, err := s.attempts.CountBefore(ctx, flightID, userID, now.Add(-DecayWindow))
		if err != nil {
			return err
		}
		if old > 0 && recent == 0 && flight.EffectivePrice() != flight.BasePrice {
			if flight, err = s.flights.SetCurrentPrice(ctx, flightID, flight.BasePrice); err != nil {
				return err
			}
			changed = true
		}

		if err := s.attempts.Insert(ctx, &domain.BookingAttempt{FlightID: flightID, UserID: userID, AttemptedAt: now}); err != nil {
			return err
		}
		count, err := s.attempts.CountSince(ctx, flightID, userID, now.Add(-SurgeWindow))
		if err != nil {
			return err
		}

		// The quote is per user: below the threshold this user pays base, whatever the flight row holds.
		quote = &domain.PriceQuote{
			FlightID:     flightID,
			BasePrice:    flight.BasePrice,
			CurrentPrice: flight.BasePrice,
			Attempts:     count,
			Message:      "Normal pricing",
		}
		if count >= SurgeThreshold {
			surge := domain.SurgePrice(flight.BasePrice, SurgeMultiplier)
			if flight.CurrentPrice == nil || *flight.CurrentPrice != surge {
				if _, err := s.flights.SetCurrentPrice(ctx, flightID, surge); err != nil {
					return err
				}
				changed = true
			}
			quote.CurrentPrice = surge
			quote.SurgeApplied = true
			quote.Message = fmt.Sprintf("Price increased by 10%% due to %d booking attempts in last 5 minutes", count)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.priceChanged(ctx, flightID, quote.CurrentPrice)
	}
	return quote, nil
}

func (s *PricingService) GetCurrentPrice(ctx context.Context, flightID int64) (*domain.PriceQuote, error) {
	if flightID <= 0 {
		return nil, domain.ValidationError("flightId required")
	}
	flight, err := s.flights.GetByID(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return &domain.PriceQuote{
		FlightID:     flightID,
		BasePrice:    flight.BasePrice,
		CurrentPrice: flight.EffectivePrice(),
		SurgeApplied: flight.EffectivePrice() != flight.BasePrice,
	}, nil
}

// DecayIdle resets surged flights that saw no attempt in the surge window but have attempts older
// than the decay window.
func (s *PricingService) DecayIdle(ctx context.Context) ([]int64, error) {
	now := s.now()
	ids, err := s.flights.ResetIdleSurges(ctx, now.Add(-SurgeWindow), now.Add(-DecayWindow))
	if err != nil {
		return nil, fmt.Errorf("reset idle surges: %w", err)
	}
	for _, id := range ids {
		flight, err := s.flights.GetByID(ctx, id)
		if err != nil {
			s.log.Warn("decayed flight vanished", zap.Int64("flight_id", id), zap.Error(err))
			continue
		}
		s.priceChanged(ctx, id, flight.BasePrice)
	}
	return ids, nil
}

func (s *PricingService) priceChanged(ctx context.Context, flightID, price int64) {
	if s.cache != nil {
		if err := s.cache.InvalidateSearch(ctx); err != nil {
			s.log.Warn("failed to invalidate search cache", zap.Int64("flight_id", flightID), zap.Error(err))
		}
	}
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.NewEvent(kafka.EventPriceChanged)
	event.FlightID = flightID
	event.Price = price
	if err := s.producer.Publish(ctx, s.topic, "flight-"+strconv.FormatInt(flightID, 10), event); err != nil {
		s.log.Warn("failed to publish price change", zap.Int64("flight_id", flightID), zap.Error(err))
	}
}

var _ PricingUseCase = (*PricingService)(nil)
