package api

import (
	"net/http"

	"github.com/Domenick1991/skybook/internal/service/pricing"
	"github.com/gin-gonic/gin"
)

type PricingHandler struct {
	service pricing.PricingUseCase
}

type recordAttemptRequest struct {
	FlightID int64       `json:"flightId"`
	UserID   looseString `json:"userId"`
}

func NewPricingHandler(service pricing.PricingUseCase) *PricingHandler {
	return &PricingHandler{service: service}
}

func (h *PricingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.recordAttempt)
	router.GET("", h.current)
}

func (h *PricingHandler) recordAttempt(c *gin.Context) {
	var req recordAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.FlightID <= 0 || req.UserID == "" {
		badRequest(c, "flightId and userId required")
		return
	}

	quote, err := h.service.RecordAttempt(c.Request.Context(), req.FlightID, string(req.UserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuote(quote))
}

func (h *PricingHandler) current(c *gin.Context) {
	flightID, ok := queryID(c, "flightId")
	if !ok {
		badRequest(c, "flightId required")
		return
	}
	quote, err := h.service.GetCurrentPrice(c.Request.Context(), flightID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"basePrice": quote.BasePrice, "currentPrice": quote.CurrentPrice})
}
