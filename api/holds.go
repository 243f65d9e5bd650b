package api

import (
	"context"
	"net/http"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/gin-gonic/gin"
)

type HoldService interface {
	CreateHold(ctx context.Context, seatID int64, minutes int) (*domain.Hold, error)
	ReleaseHold(ctx context.Context, seatID int64) error
}

type HoldHandler struct {
	service HoldService
}

type createHoldRequest struct {
	SeatID  int64 `json:"seatId" binding:"required"`
	Minutes *int  `json:"minutes"`
}

func NewHoldHandler(service HoldService) *HoldHandler {
	return &HoldHandler{service: service}
}

func (h *HoldHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.DELETE("", h.release)
}

func (h *HoldHandler) create(c *gin.Context) {
	var req createHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	// Absent means the default hold length; an explicit value must be a real duration.
	minutes := 0
	if req.Minutes != nil {
		if *req.Minutes < 1 {
			badRequest(c, "minutes must be positive")
			return
		}
		minutes = *req.Minutes
	}

	hold, err := h.service.CreateHold(c.Request.Context(), req.SeatID, minutes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hold": toHold(hold)})
}

func (h *HoldHandler) release(c *gin.Context) {
	seatID, ok := queryID(c, "seatId")
	if !ok {
		badRequest(c, "Invalid seatId")
		return
	}
	if err := h.service.ReleaseHold(c.Request.Context(), seatID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
