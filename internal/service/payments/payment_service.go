package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/kafka"
	"github.com/Domenick1991/skybook/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultCurrency = "USD"
	DefaultMethod   = "wallet"
)

type PaymentUseCase interface {
	Capture(ctx context.Context, input CaptureInput) (*domain.Payment, error)
	List(ctx context.Context) ([]domain.Payment, error)
}

// Gateway captures funds with an external provider and returns its reference.
type Gateway interface {
	Name() string
	Capture(ctx context.Context, amount int64, currency, method string) (string, error)
}

// MockGateway approves every capture.
type MockGateway struct{}

func (MockGateway) Name() string { return "MOCK_PAYMENT_GATEWAY" }

func (MockGateway) Capture(_ context.Context, _ int64, _ string, _ string) (string, error) {
	return "mock_" + uuid.NewString(), nil
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type CaptureInput struct {
	BookingID int64
	Amount    int64
	Method    string
}

type PaymentService struct {
	payments repository.PaymentRepository
	bookings repository.BookingRepository
	tx       repository.TxManager
	gateway  Gateway
	producer Producer
	topic    string
	log      *zap.Logger
}

type PaymentServiceOption func(*PaymentService)

func WithGateway(g Gateway) PaymentServiceOption {
	return func(s *PaymentService) {
		s.gateway = g
	}
}

func WithProducer(p Producer, topic string) PaymentServiceOption {
	return func(s *PaymentService) {
		s.producer = p
		s.topic = topic
	}
}

func WithLogger(log *zap.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		s.log = log
	}
}

func NewPaymentService(payments repository.PaymentRepository, bookings repository.BookingRepository, tx repository.TxManager, opts ...PaymentServiceOption) *PaymentService {
	s := &PaymentService{
		payments: payments,
		bookings: bookings,
		tx:       tx,
		gateway:  MockGateway{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture records a captured payment and links it to the booking.
func (s *PaymentService) Capture(ctx context.Context, input CaptureInput) (*domain.Payment, error) {
	if input.BookingID <= 0 {
		return nil, domain.ValidationError("bookingId must be positive")
	}
	if input.Amount < 1 {
		return nil, domain.ValidationError("amount must be at least 1")
	}
	method := strings.TrimSpace(input.Method)
	if method == "" {
		method = DefaultMethod
	}

	var payment *domain.Payment
	var pnr string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		booking, err := s.bookings.GetForUpdate(ctx, input.BookingID)
		if err != nil {
			return err
		}
		pnr = booking.PNR

		ref, err := s.gateway.Capture(ctx, input.Amount, DefaultCurrency, method)
		if err != nil {
			return fmt.Errorf("capture via %s: %w", s.gateway.Name(), err)
		}

		payment = &domain.Payment{
			BookingID: booking.ID,
			Amount:    input.Amount,
			Currency:  DefaultCurrency,
			Method:    method,
			Status:    domain.PaymentStatusCaptured,
			Provider:  s.gateway.Name(),
			Reference: ref,
		}
		if err := s.payments.Create(ctx, payment); err != nil {
			return err
		}
		return s.bookings.AttachPayment(ctx, booking.ID, payment.ID)
	})
	if err != nil {
		return nil, err
	}

	if s.producer != nil && s.topic != "" {
		event := kafka.NewEvent(kafka.EventPaymentCaptured)
		event.BookingID = payment.BookingID
		event.PNR = pnr
		event.Amount = payment.Amount
		if err := s.producer.Publish(ctx, s.topic, "booking-"+strconv.FormatInt(payment.BookingID, 10), event); err != nil {
			s.log.Warn("failed to publish payment event", zap.Int64("payment_id", payment.ID), zap.Error(err))
		}
	}
	return payment, nil
}

func (s *PaymentService) List(ctx context.Context) ([]domain.Payment, error) {
	return s.payments.List(ctx)
}

var _ PaymentUseCase = (*PaymentService)(nil)
