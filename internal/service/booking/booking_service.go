package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/kafka"
	"github.com/Domenick1991/skybook/internal/repository"
	"github.com/Rican7/retry"
	"github.com/Rican7/retry/strategy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const pnrAttempts = 5

var errSeatLockBusy = errors.New("seat lock busy")

var tracer = otel.Tracer("github.com/Domenick1991/skybook/internal/service/booking")

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.BookingResult, error)
	CancelBooking(ctx context.Context, bookingID int64) (*domain.Booking, error)
	ListBookings(ctx context.Context) ([]domain.BookingDetails, error)
}

// SeatStore is the seat state machine as seen by the coordinator.
type SeatStore interface {
	Lock(ctx context.Context, seatID int64) (*domain.Seat, error)
	TryMarkBooked(ctx context.Context, seatID int64) error
	Release(ctx context.Context, seatID int64) error
}

type Ledger interface {
	EnsureWallet(ctx context.Context, passengerID int64) (*domain.Wallet, error)
	FindWallet(ctx context.Context, passengerID int64) (*domain.Wallet, error)
	Debit(ctx context.Context, walletID, amount int64, description string) (int64, error)
	Credit(ctx context.Context, walletID, amount int64, description string, kind domain.TransactionKind) (int64, error)
}

type Cache interface {
	AcquireSeatLock(ctx context.Context, seatID int64, ttl time.Duration) (string, bool, error)
	ReleaseSeatLock(ctx context.Context, seatID int64, token string) error
	ReserveIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, *domain.BookingResult, error)
	StoreBookingResult(ctx context.Context, key string, result *domain.BookingResult, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type PassengerInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type CreateBookingInput struct {
	FlightID       int64
	SeatID         int64
	Passenger      PassengerInput
	IdempotencyKey string
}

type BookingService struct {
	bookings           repository.BookingRepository
	passengers         repository.PassengerRepository
	flights            repository.FlightRepository
	seats              SeatStore
	ledger             Ledger
	tx                 repository.TxManager
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	seatLockTTL        time.Duration
	seatLockPolls      uint
	seatLockInterval   time.Duration
	idempotencyTTL     time.Duration
	newPNR             func() (string, error)
	now                func() time.Time
	log                *zap.Logger
}

type BookingServiceOption func(*BookingService)

// WithCache enables the redis seat lock and idempotency replay.
func WithCache(c Cache, seatLockTTL, idempotencyTTL time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = c
		s.seatLockTTL = seatLockTTL
		s.idempotencyTTL = idempotencyTTL
	}
}

// WithSeatLockWait bounds how long a request queues behind another holder of the
// seat lock before it goes straight to the row lock.
func WithSeatLockWait(polls uint, interval time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.seatLockPolls = polls
		s.seatLockInterval = interval
	}
}

func WithProducer(p Producer, bookingTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = p
		s.bookingTopic = bookingTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithPNRGenerator(gen func() (string, error)) BookingServiceOption {
	return func(s *BookingService) {
		s.newPNR = gen
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func WithLogger(log *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.log = log
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	passengers repository.PassengerRepository,
	flights repository.FlightRepository,
	seats SeatStore,
	ledger Ledger,
	tx repository.TxManager,
	opts ...BookingServiceOption,
) *BookingService {
	s := &BookingService{
		bookings:       bookings,
		passengers:     passengers,
		flights:        flights,
		seats:          seats,
		ledger:         ledger,
		tx:             tx,
		seatLockTTL:      10 * time.Second,
		seatLockPolls:    25,
		seatLockInterval: 20 * time.Millisecond,
		idempotencyTTL:   5 * time.Minute,
		newPNR:           GeneratePNR,
		now:              time.Now,
		log:              zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (in CreateBookingInput) validate() error {
	if in.FlightID <= 0 || in.SeatID <= 0 {
		return domain.ValidationError("flightId and seatId must be positive")
	}
	if strings.TrimSpace(in.Passenger.FirstName) == "" || strings.TrimSpace(in.Passenger.LastName) == "" {
		return domain.ValidationError("passenger first and last name are required")
	}
	if _, err := mail.ParseAddress(in.Passenger.Email); err != nil {
		return domain.ValidationError("invalid passenger email %q", in.Passenger.Email)
	}
	return nil
}

// CreateBooking debits the wallet, books the seat and records the booking as one unit.
// Either all three happen or none does.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (result *domain.BookingResult, err error) {
	ctx, span := tracer.Start(ctx, "booking.CreateBooking")
	defer span.End()
	span.SetAttributes(attribute.Int64("flight.id", input.FlightID), attribute.Int64("seat.id", input.SeatID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := input.validate(); err != nil {
		return nil, err
	}
	input.Passenger.Email = strings.ToLower(strings.TrimSpace(input.Passenger.Email))

	if input.IdempotencyKey != "" && s.cache != nil {
		reserved, stored, err := s.cache.ReserveIdempotencyKey(ctx, input.IdempotencyKey, s.idempotencyTTL)
		switch {
		case err != nil:
			s.log.Warn("idempotency store unavailable", zap.String("key", input.IdempotencyKey), zap.Error(err))
		case stored != nil:
			span.SetAttributes(attribute.Bool("booking.replayed", true))
			return stored, nil
		case !reserved:
			return nil, domain.ErrRequestInProgress
		default:
			defer func() { s.finishIdempotent(ctx, input.IdempotencyKey, result) }()
		}
	}

	if s.cache != nil {
		if token, ok := s.acquireSeatLock(ctx, input.SeatID); ok {
			defer func() {
				if err := s.cache.ReleaseSeatLock(ctx, input.SeatID, token); err != nil {
					s.log.Warn("failed to release seat lock", zap.Int64("seat_id", input.SeatID), zap.Error(err))
				}
			}()
		}
	}

	var route string
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		result, route, err = s.book(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("booking.pnr", result.Booking.PNR))
	s.log.Info("booking confirmed",
		zap.String("pnr", result.Booking.PNR),
		zap.Int64("booking_id", result.Booking.ID),
		zap.Int64("seat_id", result.Booking.SeatID),
		zap.Int64("price", result.Booking.Price),
		zap.String("route", route),
	)
	s.publish(ctx, kafka.EventBookingConfirmed, &result.Booking, input.Passenger.Email)
	return result, nil
}

// acquireSeatLock queues briefly behind a concurrent holder of the same seat. The
// redis lock only thins out contention: whether or not it is obtained, the seat row
// lock taken inside the transaction decides the outcome.
func (s *BookingService) acquireSeatLock(ctx context.Context, seatID int64) (string, bool) {
	var token string
	err := retry.Retry(func(uint) error {
		if err := ctx.Err(); err != nil {
			return nil
		}
		t, ok, err := s.cache.AcquireSeatLock(ctx, seatID, s.seatLockTTL)
		if err != nil {
			s.log.Warn("seat lock unavailable, relying on row locks", zap.Int64("seat_id", seatID), zap.Error(err))
			return nil
		}
		if !ok {
			return errSeatLockBusy
		}
		token = t
		return nil
	}, strategy.Limit(s.seatLockPolls), strategy.Wait(s.seatLockInterval))
	if err != nil {
		s.log.Debug("seat lock still held, waiting on row lock", zap.Int64("seat_id", seatID))
		return "", false
	}
	return token, token != ""
}

func (s *BookingService) book(ctx context.Context, input CreateBookingInput) (*domain.BookingResult, string, error) {
	seat, err := s.seats.Lock(ctx, input.SeatID)
	if err != nil {
		if errors.Is(err, domain.ErrSeatNotFound) {
			return nil, "", domain.ErrSeatUnavailable
		}
		return nil, "", err
	}
	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		return nil, "", err
	}
	if seat.FlightID != flight.ID {
		return nil, "", domain.ValidationError("seat %d does not belong to flight %d", seat.ID, flight.ID)
	}
	if seat.Status == domain.SeatStatusBooked {
		return nil, "", domain.ErrSeatUnavailable
	}

	passenger := &domain.Passenger{
		FirstName: strings.TrimSpace(input.Passenger.FirstName),
		LastName:  strings.TrimSpace(input.Passenger.LastName),
		Email:     input.Passenger.Email,
	}
	if err := s.passengers.Upsert(ctx, passenger); err != nil {
		return nil, "", fmt.Errorf("upsert passenger: %w", err)
	}
	wallet, err := s.ledger.EnsureWallet(ctx, passenger.ID)
	if err != nil {
		return nil, "", fmt.Errorf("ensure wallet: %w", err)
	}

	price := flight.EffectivePrice()
	if wallet.Balance < price {
		return nil, "", &domain.InsufficientFundsError{Required: price, Available: wallet.Balance}
	}

	booking := &domain.Booking{
		FlightID:    flight.ID,
		SeatID:      seat.ID,
		PassengerID: passenger.ID,
		Price:       price,
	}
	if err := s.insertWithPNR(ctx, booking); err != nil {
		return nil, "", err
	}

	route := flight.Origin + " to " + flight.Destination
	balance, err := s.ledger.Debit(ctx, wallet.ID, price, fmt.Sprintf("Booking for %s - PNR: %s", route, booking.PNR))
	if err != nil {
		return nil, "", err
	}
	if err := s.seats.TryMarkBooked(ctx, seat.ID); err != nil {
		return nil, "", err
	}
	return &domain.BookingResult{Booking: *booking, WalletBalance: balance}, route, nil
}

// insertWithPNR draws locators until one is free. A taken locator does not abort the transaction.
func (s *BookingService) insertWithPNR(ctx context.Context, booking *domain.Booking) error {
	for i := 0; i < pnrAttempts; i++ {
		pnr, err := s.newPNR()
		if err != nil {
			return fmt.Errorf("generate pnr: %w", err)
		}
		booking.PNR = pnr
		inserted, err := s.bookings.Insert(ctx, booking)
		if err != nil {
			return err
		}
		if inserted {
			return nil
		}
		s.log.Debug("pnr collision, drawing another", zap.String("pnr", pnr))
	}
	return fmt.Errorf("no free pnr after %d attempts", pnrAttempts)
}

// CancelBooking refunds the price to the passenger's wallet and frees the seat. A second cancel
// of the same booking fails with domain.ErrAlreadyCanceled and refunds nothing.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64) (canceled *domain.Booking, err error) {
	ctx, span := tracer.Start(ctx, "booking.CancelBooking")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", bookingID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if bookingID <= 0 {
		return nil, domain.ValidationError("invalid booking id")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		booking, err := s.bookings.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status == domain.BookingStatusCanceled {
			return domain.ErrAlreadyCanceled
		}

		wallet, err := s.ledger.FindWallet(ctx, booking.PassengerID)
		if err != nil {
			return err
		}
		if wallet != nil {
			desc := "Refund for cancelled booking - PNR: " + booking.PNR
			if _, err := s.ledger.Credit(ctx, wallet.ID, booking.Price, desc, domain.TransactionRefund); err != nil {
				return fmt.Errorf("refund: %w", err)
			}
		}

		now := s.now()
		ok, err := s.bookings.MarkCanceled(ctx, booking.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyCanceled
		}
		if err := s.seats.Release(ctx, booking.SeatID); err != nil {
			return err
		}

		booking.Status = domain.BookingStatusCanceled
		booking.CanceledAt = &now
		canceled = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	email := ""
	if p, err := s.passengers.GetByID(ctx, canceled.PassengerID); err == nil {
		email = p.Email
	}
	s.log.Info("booking canceled", zap.String("pnr", canceled.PNR), zap.Int64("booking_id", canceled.ID), zap.Int64("refund", canceled.Price))
	s.publish(ctx, kafka.EventBookingCanceled, canceled, email)
	return canceled, nil
}

func (s *BookingService) ListBookings(ctx context.Context) ([]domain.BookingDetails, error) {
	return s.bookings.List(ctx)
}

func (s *BookingService) finishIdempotent(ctx context.Context, key string, result *domain.BookingResult) {
	var err error
	if result != nil {
		err = s.cache.StoreBookingResult(ctx, key, result, s.idempotencyTTL)
	} else {
		err = s.cache.ReleaseIdempotencyKey(ctx, key)
	}
	if err != nil {
		s.log.Warn("failed to settle idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking, email string) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.NewEvent(eventType)
	event.BookingID = booking.ID
	event.FlightID = booking.FlightID
	event.SeatID = booking.SeatID
	event.PNR = booking.PNR
	event.Email = email
	event.Price = booking.Price

	if err := s.producer.Publish(ctx, s.bookingTopic, booking.PNR, event); err != nil {
		s.log.Warn("failed to publish booking event", zap.String("type", eventType), zap.String("pnr", booking.PNR), zap.Error(err))
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.PNR, event); err != nil {
			s.log.Warn("failed to publish notification", zap.String("type", eventType), zap.String("pnr", booking.PNR), zap.Error(err))
		}
	}
}

var _ BookingUseCase = (*BookingService)(nil)
