package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/repository/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type StubGateway struct {
	mock.Mock
}

func (m *StubGateway) Name() string { return "TEST_GATEWAY" }

func (m *StubGateway) Capture(ctx context.Context, amount int64, currency, method string) (string, error) {
	args := m.Called(ctx, amount, currency, method)
	return args.String(0), args.Error(1)
}

func seedBooking(t *testing.T, store *repotest.Store) domain.Booking {
	t.Helper()
	b := &domain.Booking{PNR: "AB12CD", FlightID: 7, SeatID: 11, PassengerID: 1, Price: 2000}
	ok, err := store.BookingRepo().Insert(context.Background(), b)
	require.NoError(t, err)
	require.True(t, ok)
	return *b
}

func TestCapture_MockGateway(t *testing.T) {
	store := repotest.NewStore()
	svc := NewPaymentService(store.Payments(), store.BookingRepo(), store)
	booking := seedBooking(t, store)

	payment, err := svc.Capture(context.Background(), CaptureInput{BookingID: booking.ID, Amount: 2000})

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCaptured, payment.Status)
	assert.Equal(t, "USD", payment.Currency)
	assert.Equal(t, "MOCK_PAYMENT_GATEWAY", payment.Provider)
	assert.Equal(t, DefaultMethod, payment.Method)
	assert.NotEmpty(t, payment.Reference)

	stored := store.Bookings()[0]
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, payment.ID, *stored.PaymentID)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCapture_Errors(t *testing.T) {
	store := repotest.NewStore()
	svc := NewPaymentService(store.Payments(), store.BookingRepo(), store)
	ctx := context.Background()

	_, err := svc.Capture(ctx, CaptureInput{BookingID: 0, Amount: 10})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Capture(ctx, CaptureInput{BookingID: 1, Amount: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Capture(ctx, CaptureInput{BookingID: 404, Amount: 10})
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestCapture_GatewayFailureRollsBack(t *testing.T) {
	store := repotest.NewStore()
	gw := &StubGateway{}
	svc := NewPaymentService(store.Payments(), store.BookingRepo(), store, WithGateway(gw))
	booking := seedBooking(t, store)

	gw.On("Capture", mock.Anything, int64(500), "USD", "card").Return("", errors.New("declined")).Once()

	_, err := svc.Capture(context.Background(), CaptureInput{BookingID: booking.ID, Amount: 500, Method: "card"})

	assert.ErrorContains(t, err, "capture via TEST_GATEWAY")
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Nil(t, store.Bookings()[0].PaymentID)
	gw.AssertExpectations(t)
}
