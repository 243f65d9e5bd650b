package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/service/booking"
	"github.com/Domenick1991/skybook/internal/service/payments"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	engine   *gin.Engine
	holds    *MockHoldService
	bookings *MockBookingUseCase
	pricing  *MockPricingUseCase
	wallet   *MockWalletService
	flights  *MockFlightUseCase
	payments *MockPaymentUseCase
}

func newTestAPI() *testAPI {
	gin.SetMode(gin.TestMode)
	a := &testAPI{
		engine:   gin.New(),
		holds:    &MockHoldService{},
		bookings: &MockBookingUseCase{},
		pricing:  &MockPricingUseCase{},
		wallet:   &MockWalletService{},
		flights:  &MockFlightUseCase{},
		payments: &MockPaymentUseCase{},
	}
	RegisterRoutes(a.engine, Handlers{
		Holds:    NewHoldHandler(a.holds),
		Bookings: NewBookingHandler(a.bookings),
		Pricing:  NewPricingHandler(a.pricing),
		Wallet:   NewWalletHandler(a.wallet),
		Flights:  NewFlightHandler(a.flights, a.holds),
		Payments: NewPaymentHandler(a.payments),
	})
	return a
}

func (a *testAPI) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	a := newTestAPI()
	w := a.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHolds(t *testing.T) {
	a := newTestAPI()
	expires := time.Date(2026, 10, 19, 12, 10, 0, 0, time.UTC)
	a.holds.On("CreateHold", mock.Anything, int64(11), 0).Return(&domain.Hold{ID: 1, SeatID: 11, ExpiresAt: expires, Active: true}, nil).Once()
	a.holds.On("CreateHold", mock.Anything, int64(12), 5).Return(nil, domain.ErrSeatUnavailable).Once()
	a.holds.On("CreateHold", mock.Anything, int64(13), 90).Return(nil, domain.ValidationError("minutes must be between 1 and 60")).Once()
	a.holds.On("ReleaseHold", mock.Anything, int64(11)).Return(nil).Once()

	w := a.do(http.MethodPost, "/api/holds", `{"seatId": 11}`)
	require.Equal(t, http.StatusOK, w.Code)
	hold := decode(t, w)["hold"].(map[string]any)
	assert.Equal(t, float64(11), hold["seatId"])
	assert.Equal(t, true, hold["active"])

	w = a.do(http.MethodPost, "/api/holds", `{"seatId": 12, "minutes": 5}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SEAT_UNAVAILABLE", decode(t, w)["code"])

	w = a.do(http.MethodPost, "/api/holds", `{"seatId": 13, "minutes": 90}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/holds", `{"minutes": 5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, body := range []string{`{"seatId": 14, "minutes": 0}`, `{"seatId": 14, "minutes": -3}`} {
		w = a.do(http.MethodPost, "/api/holds", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"], body)
	}
	a.holds.AssertNotCalled(t, "CreateHold", mock.Anything, int64(14), mock.Anything)

	w = a.do(http.MethodDelete, "/api/holds?seatId=11", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(http.MethodDelete, "/api/holds?seatId=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.holds.AssertExpectations(t)
}

func TestCreateBooking(t *testing.T) {
	a := newTestAPI()
	input := booking.CreateBookingInput{
		FlightID:       7,
		SeatID:         11,
		Passenger:      booking.PassengerInput{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		IdempotencyKey: "req-1",
	}
	a.bookings.On("CreateBooking", mock.Anything, input).Return(&domain.BookingResult{
		Booking:       domain.Booking{ID: 5, PNR: "AB12CD", FlightID: 7, SeatID: 11, Price: 2000, Status: domain.BookingStatusConfirmed},
		WalletBalance: 48000,
	}, nil).Once()

	w := a.do(http.MethodPost, "/api/bookings",
		`{"flightId":7,"seatId":11,"passenger":{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com"}}`,
		IdempotencyKeyHeader, "req-1")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(48000), body["walletBalance"])
	assert.Equal(t, "AB12CD", body["booking"].(map[string]any)["pnr"])
	a.bookings.AssertExpectations(t)
}

func TestCreateBooking_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "insufficient funds", err: &domain.InsufficientFundsError{Required: 2000, Available: 1000}, status: http.StatusBadRequest, code: "INSUFFICIENT_FUNDS"},
		{name: "flight not found", err: domain.ErrFlightNotFound, status: http.StatusNotFound, code: "FLIGHT_NOT_FOUND"},
		{name: "seat unavailable", err: domain.ErrSeatUnavailable, status: http.StatusConflict, code: "SEAT_UNAVAILABLE"},
		{name: "in progress", err: domain.ErrRequestInProgress, status: http.StatusConflict, code: "REQUEST_IN_PROGRESS"},
		{name: "validation", err: domain.ValidationError("bad"), status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "unexpected", err: errors.New("db exploded"), status: http.StatusInternalServerError, code: "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI()
			a.bookings.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			w := a.do(http.MethodPost, "/api/bookings", `{"flightId":7,"seatId":11,"passenger":{"firstName":"A","lastName":"B","email":"a@b.io"}}`)

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["code"])
			if tt.code == "INSUFFICIENT_FUNDS" {
				assert.Equal(t, float64(2000), body["required"])
				assert.Equal(t, float64(1000), body["available"])
				assert.Equal(t, float64(1000), body["shortfall"])
			}
			if tt.code == "INTERNAL" {
				assert.NotContains(t, w.Body.String(), "db exploded")
			}
		})
	}
}

func TestCancelAndListBookings(t *testing.T) {
	a := newTestAPI()
	a.bookings.On("CancelBooking", mock.Anything, int64(5)).Return(&domain.Booking{ID: 5, Status: domain.BookingStatusCanceled}, nil).Once()
	a.bookings.On("CancelBooking", mock.Anything, int64(6)).Return(nil, domain.ErrAlreadyCanceled).Once()
	a.bookings.On("CancelBooking", mock.Anything, int64(7)).Return(nil, domain.ErrBookingNotFound).Once()
	a.bookings.On("ListBookings", mock.Anything).Return([]domain.BookingDetails{
		{Booking: domain.Booking{ID: 9, PNR: "NEWEST"}, SeatLabel: "2C", PassengerEmail: "ada@example.com"},
		{Booking: domain.Booking{ID: 5, PNR: "OLDEST"}},
	}, nil).Once()

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/api/bookings?id=5", "").Code)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodDelete, "/api/bookings?id=6", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/api/bookings?id=7", "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodDelete, "/api/bookings", "").Code)

	w := a.do(http.MethodGet, "/api/bookings", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["bookings"].([]any)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	assert.Equal(t, "NEWEST", first["pnr"])
	assert.Equal(t, "2C", first["seatNumber"])
	a.bookings.AssertExpectations(t)
}

func TestPricing(t *testing.T) {
	a := newTestAPI()
	a.pricing.On("RecordAttempt", mock.Anything, int64(7), "42").Return(&domain.PriceQuote{
		FlightID: 7, BasePrice: 2000, CurrentPrice: 2200, SurgeApplied: true, Attempts: 3,
	}, nil).Twice()
	a.pricing.On("RecordAttempt", mock.Anything, int64(99), "42").Return(nil, domain.ErrFlightNotFound).Once()
	a.pricing.On("GetCurrentPrice", mock.Anything, int64(7)).Return(&domain.PriceQuote{BasePrice: 2000, CurrentPrice: 2200}, nil).Once()

	w := a.do(http.MethodPost, "/api/pricing", `{"flightId":7,"userId":42}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["surgeApplied"])
	assert.Equal(t, float64(2200), body["currentPrice"])
	assert.Equal(t, float64(3), body["attempts"])

	assert.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/pricing", `{"flightId":7,"userId":"42"}`).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/api/pricing", `{"flightId":99,"userId":"42"}`).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/pricing", `{"flightId":7}`).Code)

	w = a.do(http.MethodGet, "/api/pricing?flightId=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2200), decode(t, w)["currentPrice"])
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/pricing", "").Code)
	a.pricing.AssertExpectations(t)
}

func TestWallet(t *testing.T) {
	a := newTestAPI()
	a.wallet.On("GetWallet", mock.Anything, "ada@example.com").Return(&domain.WalletView{
		Email: "ada@example.com", Balance: 50000, Transactions: []domain.Transaction{},
	}, nil).Once()
	a.wallet.On("TopUp", mock.Anything, "ada@example.com", int64(500)).Return(&domain.WalletView{
		WalletID: 3, Email: "ada@example.com", Balance: 50500,
		Transactions: []domain.Transaction{{ID: 1, Amount: 500, Kind: domain.TransactionCredit, Description: "Added to wallet"}},
	}, nil).Once()
	a.wallet.On("TopUp", mock.Anything, "ghost@example.com", int64(500)).Return(nil, domain.ErrPassengerNotFound).Once()

	w := a.do(http.MethodGet, "/api/wallet?email=Ada@Example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(50000), body["balance"])
	assert.Empty(t, body["transactions"])

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/wallet", "").Code)

	w = a.do(http.MethodPost, "/api/wallet", `{"email":"ada@example.com","amount":500}`)
	require.Equal(t, http.StatusOK, w.Code)
	txs := decode(t, w)["transactions"].([]any)
	assert.Equal(t, "CREDIT", txs[0].(map[string]any)["type"])

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/api/wallet", `{"email":"ghost@example.com","amount":500}`).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/wallet", `{"email":"ada@example.com"}`).Code)
	a.wallet.AssertExpectations(t)
}

func TestFlightsSearchAndSeats(t *testing.T) {
	a := newTestAPI()
	date := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	surge := int64(2200)
	a.flights.On("Search", mock.Anything, mock.MatchedBy(func(q domain.FlightQuery) bool {
		return q.Origin == "JFK" && q.Destination == "LAX" && q.Date != nil && q.Date.Equal(date)
	})).Return([]domain.Flight{
		{ID: 7, Origin: "JFK", Destination: "LAX", BasePrice: 2000, CurrentPrice: &surge},
	}, nil).Once()
	a.flights.On("GetByID", mock.Anything, int64(7)).Return(&domain.Flight{ID: 7, BasePrice: 2000}, nil).Once()
	a.flights.On("GetByID", mock.Anything, int64(8)).Return(nil, domain.ErrFlightNotFound).Once()
	a.holds.On("ListSeats", mock.Anything, int64(7)).Return([]domain.Seat{
		{ID: 1, FlightID: 7, Label: "1A", Status: domain.SeatStatusHeld},
		{ID: 2, FlightID: 7, Label: "1B", Status: domain.SeatStatusFree},
	}, nil).Once()

	w := a.do(http.MethodGet, "/api/search?origin=jfk&destination=LAX&date=2026-11-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	flights := decode(t, w)["flights"].([]any)
	require.Len(t, flights, 1)
	assert.Equal(t, float64(2200), flights[0].(map[string]any)["currentPrice"])

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/search?date=02-11-2026", "").Code)

	w = a.do(http.MethodGet, "/api/seats?flightId=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	seats := decode(t, w)["seats"].([]any)
	require.Len(t, seats, 2)
	assert.Equal(t, true, seats[0].(map[string]any)["isHeld"])
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/seats", "").Code)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/flights/7", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/flights/8", "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/flights/x", "").Code)

	a.flights.AssertExpectations(t)
	a.holds.AssertExpectations(t)
}

func TestPayments(t *testing.T) {
	a := newTestAPI()
	a.payments.On("Capture", mock.Anything, payments.CaptureInput{BookingID: 5, Amount: 2000, Method: "card"}).Return(&domain.Payment{
		ID: 1, BookingID: 5, Amount: 2000, Currency: "USD", Status: domain.PaymentStatusCaptured, Provider: "MOCK_PAYMENT_GATEWAY",
	}, nil).Once()
	a.payments.On("Capture", mock.Anything, payments.CaptureInput{BookingID: 6, Amount: 10}).Return(nil, domain.ErrBookingNotFound).Once()
	a.payments.On("List", mock.Anything).Return([]domain.Payment{{ID: 1}}, nil).Once()

	w := a.do(http.MethodPost, "/api/payments", `{"bookingId":5,"amount":2000,"paymentMethod":"card"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "CAPTURED", body["payment"].(map[string]any)["status"])

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/api/payments", `{"bookingId":6,"amount":10}`).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/payments", `{"bookingId":6,"amount":0}`).Code)

	w = a.do(http.MethodGet, "/api/payments", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["payments"].([]any), 1)
	a.payments.AssertExpectations(t)
}

func TestLooseString(t *testing.T) {
	var v struct {
		ID looseString `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id": 42}`), &v))
	assert.Equal(t, looseString("42"), v.ID)
	require.NoError(t, json.Unmarshal([]byte(`{"id": " u-7 "}`), &v))
	assert.Equal(t, looseString("u-7"), v.ID)
	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &v))
}
