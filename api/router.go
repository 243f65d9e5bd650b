package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Holds    *HoldHandler
	Bookings *BookingHandler
	Pricing  *PricingHandler
	Wallet   *WalletHandler
	Flights  *FlightHandler
	Payments *PaymentHandler
}

// RegisterRoutes mounts every handler under /api plus the liveness check.
func RegisterRoutes(engine *gin.Engine, h Handlers) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := engine.Group("/api")
	h.Holds.Register(group.Group("/holds"))
	h.Bookings.Register(group.Group("/bookings"))
	h.Pricing.Register(group.Group("/pricing"))
	h.Wallet.Register(group.Group("/wallet"))
	h.Payments.Register(group.Group("/payments"))
	h.Flights.Register(group)
}
