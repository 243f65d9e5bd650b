package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type SeatLister interface {
	ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
}

type FlightHandler struct {
	service flights.FlightUseCase
	seats   SeatLister
}

func NewFlightHandler(service flights.FlightUseCase, seats SeatLister) *FlightHandler {
	return &FlightHandler{service: service, seats: seats}
}

// Register mounts search, seat map and flight detail under the api group.
func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/search", h.search)
	router.GET("/seats", h.listSeats)
	router.GET("/flights/:id", h.getByID)
}

func (h *FlightHandler) search(c *gin.Context) {
	q := domain.FlightQuery{
		Origin:      strings.ToUpper(strings.TrimSpace(c.Query("origin"))),
		Destination: strings.ToUpper(strings.TrimSpace(c.Query("destination"))),
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		q.Date = &date
	}

	found, err := h.service.Search(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]flightResponse, 0, len(found))
	for i := range found {
		out = append(out, toFlight(&found[i]))
	}
	c.JSON(http.StatusOK, gin.H{"flights": out})
}

func (h *FlightHandler) listSeats(c *gin.Context) {
	flightID, ok := queryID(c, "flightId")
	if !ok {
		badRequest(c, "flightId required")
		return
	}
	seats, err := h.seats.ListSeats(c.Request.Context(), flightID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]seatResponse, 0, len(seats))
	for _, s := range seats {
		out = append(out, toSeat(s))
	}
	c.JSON(http.StatusOK, gin.H{"seats": out})
}

func (h *FlightHandler) getByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid flight id")
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlight(flight))
}
