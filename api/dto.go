package api

import (
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
)

type holdResponse struct {
	ID        int64     `json:"id"`
	SeatID    int64     `json:"seatId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func toHold(h *domain.Hold) holdResponse {
	return holdResponse{ID: h.ID, SeatID: h.SeatID, ExpiresAt: h.ExpiresAt, Active: h.Active, CreatedAt: h.CreatedAt}
}

type seatResponse struct {
	ID       int64  `json:"id"`
	FlightID int64  `json:"flightId"`
	Label    string `json:"seatNumber"`
	Class    string `json:"class"`
	Status   string `json:"status"`
	IsHeld   bool   `json:"isHeld"`
	IsBooked bool   `json:"isBooked"`
}

func toSeat(s domain.Seat) seatResponse {
	return seatResponse{
		ID:       s.ID,
		FlightID: s.FlightID,
		Label:    s.Label,
		Class:    string(s.Class),
		Status:   string(s.Status),
		IsHeld:   s.Status == domain.SeatStatusHeld,
		IsBooked: s.Status == domain.SeatStatusBooked,
	}
}

type flightResponse struct {
	ID           int64     `json:"id"`
	FlightNumber string    `json:"flightNumber"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	AircraftCode string    `json:"aircraftCode"`
	DepartureAt  time.Time `json:"departureAt"`
	ArrivalAt    time.Time `json:"arrivalAt"`
	Status       string    `json:"status"`
	BasePrice    int64     `json:"basePrice"`
	CurrentPrice int64     `json:"currentPrice"`
	PriceVersion int64     `json:"priceVersion"`
}

func toFlight(f *domain.Flight) flightResponse {
	return flightResponse{
		ID:           f.ID,
		FlightNumber: f.FlightNumber,
		Origin:       f.Origin,
		Destination:  f.Destination,
		AircraftCode: f.AircraftCode,
		DepartureAt:  f.DepartureAt,
		ArrivalAt:    f.ArrivalAt,
		Status:       string(f.Status),
		BasePrice:    f.BasePrice,
		CurrentPrice: f.EffectivePrice(),
		PriceVersion: f.PriceVersion,
	}
}

type bookingResponse struct {
	ID          int64      `json:"id"`
	PNR         string     `json:"pnr"`
	FlightID    int64      `json:"flightId"`
	SeatID      int64      `json:"seatId"`
	PassengerID int64      `json:"passengerId"`
	Price       int64      `json:"price"`
	Status      string     `json:"status"`
	PaymentID   *int64     `json:"paymentId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CanceledAt  *time.Time `json:"canceledAt,omitempty"`
}

func toBooking(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID,
		PNR:         b.PNR,
		FlightID:    b.FlightID,
		SeatID:      b.SeatID,
		PassengerID: b.PassengerID,
		Price:       b.Price,
		Status:      string(b.Status),
		PaymentID:   b.PaymentID,
		CreatedAt:   b.CreatedAt,
		CanceledAt:  b.CanceledAt,
	}
}

type bookingDetailsResponse struct {
	bookingResponse
	SeatLabel      string    `json:"seatNumber"`
	PassengerName  string    `json:"passengerName"`
	PassengerEmail string    `json:"passengerEmail"`
	FlightNumber   string    `json:"flightNumber"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartureAt    time.Time `json:"departureAt"`
}

func toBookingDetails(d domain.BookingDetails) bookingDetailsResponse {
	return bookingDetailsResponse{
		bookingResponse: toBooking(&d.Booking),
		SeatLabel:       d.SeatLabel,
		PassengerName:   d.PassengerName,
		PassengerEmail:  d.PassengerEmail,
		FlightNumber:    d.FlightNumber,
		Origin:          d.Origin,
		Destination:     d.Destination,
		DepartureAt:     d.DepartureAt,
	}
}

type transactionResponse struct {
	ID          int64     `json:"id"`
	Amount      int64     `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type walletResponse struct {
	ID           int64                 `json:"id,omitempty"`
	Email        string                `json:"email"`
	Balance      int64                 `json:"balance"`
	Transactions []transactionResponse `json:"transactions"`
}

func toWallet(v *domain.WalletView) walletResponse {
	txs := make([]transactionResponse, 0, len(v.Transactions))
	for _, t := range v.Transactions {
		txs = append(txs, transactionResponse{ID: t.ID, Amount: t.Amount, Type: string(t.Kind), Description: t.Description, CreatedAt: t.CreatedAt})
	}
	return walletResponse{ID: v.WalletID, Email: v.Email, Balance: v.Balance, Transactions: txs}
}

type quoteResponse struct {
	FlightID     int64  `json:"flightId"`
	BasePrice    int64  `json:"basePrice"`
	CurrentPrice int64  `json:"currentPrice"`
	SurgeApplied bool   `json:"surgeApplied"`
	Attempts     int    `json:"attempts"`
	Message      string `json:"message,omitempty"`
}

func toQuote(q *domain.PriceQuote) quoteResponse {
	return quoteResponse{
		FlightID:     q.FlightID,
		BasePrice:    q.BasePrice,
		CurrentPrice: q.CurrentPrice,
		SurgeApplied: q.SurgeApplied,
		Attempts:     q.Attempts,
		Message:      q.Message,
	}
}

type paymentResponse struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"bookingId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Method    string    `json:"paymentMethod"`
	Status    string    `json:"status"`
	Provider  string    `json:"provider"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"createdAt"`
}

func toPayment(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		BookingID: p.BookingID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Method:    p.Method,
		Status:    string(p.Status),
		Provider:  p.Provider,
		Reference: p.Reference,
		CreatedAt: p.CreatedAt,
	}
}
