package domain

import (
	"math"
	"time"
)

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "SCHEDULED"
	FlightStatusDeparted  FlightStatus = "DEPARTED"
	FlightStatusCanceled  FlightStatus = "CANCELED"
)

type Flight struct {
	ID           int64
	FlightNumber string
	Origin       string
	Destination  string
	AircraftCode string
	DepartureAt  time.Time
	ArrivalAt    time.Time
	Status       FlightStatus
	BasePrice    int64
	CurrentPrice *int64
	PriceVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EffectivePrice is the price a booking is charged: the surge price when one is set, the base price otherwise.
func (f *Flight) EffectivePrice() int64 {
	if f.CurrentPrice != nil && *f.CurrentPrice > 0 {
		return *f.CurrentPrice
	}
	return f.BasePrice
}

// SurgePrice rounds half away from zero, matching the pricing rule for a 10% surcharge.
func SurgePrice(base int64, multiplier float64) int64 {
	return int64(math.Round(float64(base) * multiplier))
}

type FlightQuery struct {
	Origin      string
	Destination string
	Date        *time.Time
}

// PriceQuote is the outcome of a booking attempt against the surge engine.
type PriceQuote struct {
	FlightID     int64
	BasePrice    int64
	CurrentPrice int64
	SurgeApplied bool
	Attempts     int
	Message      string
}
