package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Required  *int64 `json:"required,omitempty"`
	Available *int64 `json:"available,omitempty"`
	Shortfall *int64 `json:"shortfall,omitempty"`
}

// writeError maps domain errors to status codes. Unknown errors are recorded on the context
// for the request logger and hidden from the client.
func writeError(c *gin.Context, err error) {
	var funds *domain.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		required, available, shortfall := funds.Required, funds.Available, funds.Shortfall()
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:     domain.ErrInsufficientFunds.Error(),
			Code:      "INSUFFICIENT_FUNDS",
			Required:  &required,
			Available: &available,
			Shortfall: &shortfall,
		})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "VALIDATION_ERROR"})
	case errors.Is(err, domain.ErrFlightNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "Flight not found", Code: "FLIGHT_NOT_FOUND"})
	case errors.Is(err, domain.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "Booking not found", Code: "BOOKING_NOT_FOUND"})
	case errors.Is(err, domain.ErrPassengerNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "Passenger not found", Code: "PASSENGER_NOT_FOUND"})
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, domain.ErrSeatUnavailable):
		c.JSON(http.StatusConflict, errorResponse{Error: "Seat unavailable", Code: "SEAT_UNAVAILABLE"})
	case errors.Is(err, domain.ErrAlreadyCanceled):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "ALREADY_CANCELED"})
	case errors.Is(err, domain.ErrRequestInProgress):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "REQUEST_IN_PROGRESS"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "INTERNAL"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "VALIDATION_ERROR"})
}
