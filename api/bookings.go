package api

import (
	"net/http"

	"github.com/Domenick1991/skybook/internal/service/booking"
	"github.com/gin-gonic/gin"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	FlightID  int64                  `json:"flightId" binding:"required"`
	SeatID    int64                  `json:"seatId" binding:"required"`
	Passenger booking.PassengerInput `json:"passenger"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.DELETE("", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		FlightID:       req.FlightID,
		SeatID:         req.SeatID,
		Passenger:      req.Passenger,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking":       toBooking(&result.Booking),
		"walletBalance": result.WalletBalance,
	})
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.ListBookings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]bookingDetailsResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDetails(b))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) cancel(c *gin.Context) {
	id, ok := queryID(c, "id")
	if !ok {
		badRequest(c, "Invalid id")
		return
	}
	if _, err := h.service.CancelBooking(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
