package seats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/kafka"
	"github.com/Domenick1991/skybook/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultHoldMinutes = 10
	MinHoldMinutes     = 1
	MaxHoldMinutes     = 60
)

// SeatUseCase is the seat state store and hold manager. Transitions join the caller's
// transaction when ctx carries one.
type SeatUseCase interface {
	Lock(ctx context.Context, seatID int64) (*domain.Seat, error)
	TryMarkHeld(ctx context.Context, seatID int64) error
	TryMarkBooked(ctx context.Context, seatID int64) error
	Release(ctx context.Context, seatID int64) error
	ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
	CreateHold(ctx context.Context, seatID int64, minutes int) (*domain.Hold, error)
	ReleaseHold(ctx context.Context, seatID int64) error
	ReapExpiredHolds(ctx context.Context, limit int) (int, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type SeatService struct {
	seats       repository.SeatRepository
	holds       repository.HoldRepository
	tx          repository.TxManager
	producer    Producer
	topic       string
	defaultHold int
	now         func() time.Time
	log         *zap.Logger
}

type SeatServiceOption func(*SeatService)

func WithProducer(p Producer, topic string) SeatServiceOption {
	return func(s *SeatService) {
		s.producer = p
		s.topic = topic
	}
}

func WithDefaultHoldMinutes(minutes int) SeatServiceOption {
	return func(s *SeatService) {
		if minutes > 0 {
			s.defaultHold = minutes
		}
	}
}

func WithClock(now func() time.Time) SeatServiceOption {
	return func(s *SeatService) {
		s.now = now
	}
}

func WithLogger(log *zap.Logger) SeatServiceOption {
	return func(s *SeatService) {
		s.log = log
	}
}

func NewSeatService(seats repository.SeatRepository, holds repository.HoldRepository, tx repository.TxManager, opts ...SeatServiceOption) *SeatService {
	s := &SeatService{
		seats:       seats,
		holds:       holds,
		tx:          tx,
		defaultHold: DefaultHoldMinutes,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lock takes the seat row lock and applies lazy expiry: lapsed holds are deactivated and a HELD seat
// left without a live hold goes back to FREE. It must run inside a transaction.
func (s *SeatService) Lock(ctx context.Context, seatID int64) (*domain.Seat, error) {
	seat, _, err := s.lockAndExpire(ctx, seatID)
	return seat, err
}

func (s *SeatService) lockAndExpire(ctx context.Context, seatID int64) (*domain.Seat, bool, error) {
	seat, err := s.seats.GetForUpdate(ctx, seatID)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	if _, err := s.holds.DeactivateExpired(ctx, seatID, now); err != nil {
		return nil, false, fmt.Errorf("expire holds for seat %d: %w", seatID, err)
	}
	if seat.Status != domain.SeatStatusHeld {
		return seat, false, nil
	}

	live, err := s.holds.HasLive(ctx, seatID, now)
	if err != nil || live {
		return seat, false, err
	}
	if err := s.seats.ClearHeld(ctx, seatID); err != nil {
		return nil, false, err
	}
	seat.Status = domain.SeatStatusFree
	return seat, true, nil
}

func (s *SeatService) TryMarkHeld(ctx context.Context, seatID int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.Lock(ctx, seatID); err != nil {
			return err
		}
		ok, err := s.seats.MarkHeld(ctx, seatID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrSeatUnavailable
		}
		return nil
	})
}

// TryMarkBooked accepts FREE and HELD seats; any active hold is cleared.
func (s *SeatService) TryMarkBooked(ctx context.Context, seatID int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.Lock(ctx, seatID); err != nil {
			return err
		}
		ok, err := s.seats.MarkBooked(ctx, seatID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrSeatUnavailable
		}
		_, err = s.holds.DeactivateBySeat(ctx, seatID)
		return err
	})
}

func (s *SeatService) Release(ctx context.Context, seatID int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.seats.MarkFree(ctx, seatID); err != nil {
			return err
		}
		_, err := s.holds.DeactivateBySeat(ctx, seatID)
		return err
	})
}

func (s *SeatService) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	if flightID <= 0 {
		return nil, domain.ValidationError("flightId required")
	}
	if _, err := s.holds.ExpireForFlight(ctx, flightID, s.now()); err != nil {
		return nil, fmt.Errorf("expire holds for flight %d: %w", flightID, err)
	}
	return s.seats.ListByFlight(ctx, flightID)
}

// CreateHold holds a FREE seat for minutes (default when 0). A seat that is booked, missing,
// or held by a live hold is unavailable.
func (s *SeatService) CreateHold(ctx context.Context, seatID int64, minutes int) (*domain.Hold, error) {
	if seatID <= 0 {
		return nil, domain.ValidationError("seatId must be positive")
	}
	if minutes == 0 {
		minutes = s.defaultHold
	}
	if minutes < MinHoldMinutes || minutes > MaxHoldMinutes {
		return nil, domain.ValidationError("minutes must be between %d and %d", MinHoldMinutes, MaxHoldMinutes)
	}

	hold := &domain.Hold{SeatID: seatID}
	var flightID int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		seat, err := s.Lock(ctx, seatID)
		if err != nil {
			if errors.Is(err, domain.ErrSeatNotFound) {
				return domain.ErrSeatUnavailable
			}
			return err
		}
		if seat.Status != domain.SeatStatusFree {
			return domain.ErrSeatUnavailable
		}
		ok, err := s.seats.MarkHeld(ctx, seatID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrSeatUnavailable
		}
		flightID = seat.FlightID
		hold.ExpiresAt = s.now().Add(time.Duration(minutes) * time.Minute)
		return s.holds.Create(ctx, hold)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventHoldCreated, flightID, seatID)
	return hold, nil
}

func (s *SeatService) ReleaseHold(ctx context.Context, seatID int64) error {
	if seatID <= 0 {
		return domain.ValidationError("invalid seatId")
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.seats.ClearHeld(ctx, seatID); err != nil {
			return err
		}
		_, err := s.holds.DeactivateBySeat(ctx, seatID)
		return err
	})
}

// ReapExpiredHolds releases up to limit lapsed holds, one transaction per seat, and reports how many
// seats went back to FREE.
func (s *SeatService) ReapExpiredHolds(ctx context.Context, limit int) (int, error) {
	expired, err := s.holds.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	freed := 0
	for _, h := range expired {
		var (
			seat     *domain.Seat
			released bool
		)
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			seat, released, err = s.lockAndExpire(ctx, h.SeatID)
			return err
		})
		if err != nil {
			if errors.Is(err, domain.ErrSeatNotFound) {
				continue
			}
			return freed, fmt.Errorf("reap hold %d: %w", h.ID, err)
		}
		if released {
			freed++
			s.publish(ctx, kafka.EventHoldExpired, seat.FlightID, seat.ID)
		}
	}
	return freed, nil
}

func (s *SeatService) publish(ctx context.Context, eventType string, flightID, seatID int64) {
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.NewEvent(eventType)
	event.FlightID = flightID
	event.SeatID = seatID
	if err := s.producer.Publish(ctx, s.topic, fmt.Sprintf("seat-%d", seatID), event); err != nil {
		s.log.Warn("failed to publish seat event", zap.String("type", eventType), zap.Int64("seat_id", seatID), zap.Error(err))
	}
}

var _ SeatUseCase = (*SeatService)(nil)
