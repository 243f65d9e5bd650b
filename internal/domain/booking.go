package domain

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCanceled  BookingStatus = "CANCELED"
)

type Booking struct {
	ID          int64
	PNR         string
	FlightID    int64
	SeatID      int64
	PassengerID int64
	Price       int64
	Status      BookingStatus
	PaymentID   *int64
	CreatedAt   time.Time
	CanceledAt  *time.Time
}

// BookingDetails is a booking joined with the seat, passenger and route it refers to.
type BookingDetails struct {
	Booking
	SeatLabel      string
	PassengerName  string
	PassengerEmail string
	FlightNumber   string
	Origin         string
	Destination    string
	DepartureAt    time.Time
}

type BookingResult struct {
	Booking       Booking
	WalletBalance int64
}

type Passenger struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time
}

type BookingAttempt struct {
	ID          int64
	FlightID    int64
	UserID      string
	AttemptedAt time.Time
}

type PaymentStatus string

const PaymentStatusCaptured PaymentStatus = "CAPTURED"

type Payment struct {
	ID        int64
	BookingID int64
	Amount    int64
	Currency  string
	Method    string
	Status    PaymentStatus
	Provider  string
	Reference string
	CreatedAt time.Time
}
