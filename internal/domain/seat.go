package domain

import "time"

type SeatStatus string

const (
	SeatStatusFree   SeatStatus = "FREE"
	SeatStatusHeld   SeatStatus = "HELD"
	SeatStatusBooked SeatStatus = "BOOKED"
)

type CabinClass string

const (
	CabinBusiness CabinClass = "BUSINESS"
	CabinEconomy  CabinClass = "ECONOMY"
)

type Seat struct {
	ID        int64
	FlightID  int64
	Label     string
	Class     CabinClass
	Status    SeatStatus
	UpdatedAt time.Time
}

type Hold struct {
	ID        int64
	SeatID    int64
	ExpiresAt time.Time
	Active    bool
	CreatedAt time.Time
}

func (h *Hold) ExpiredAt(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}
