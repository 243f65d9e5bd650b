package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/gin-gonic/gin"
)

type WalletService interface {
	GetWallet(ctx context.Context, email string) (*domain.WalletView, error)
	TopUp(ctx context.Context, email string, amount int64) (*domain.WalletView, error)
}

type WalletHandler struct {
	service WalletService
}

type topUpRequest struct {
	Email  string `json:"email"`
	Amount int64  `json:"amount"`
}

func NewWalletHandler(service WalletService) *WalletHandler {
	return &WalletHandler{service: service}
}

func (h *WalletHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.get)
	router.POST("", h.topUp)
}

func (h *WalletHandler) get(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		badRequest(c, "Email required")
		return
	}
	view, err := h.service.GetWallet(c.Request.Context(), strings.ToLower(email))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWallet(view))
}

func (h *WalletHandler) topUp(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Amount == 0 {
		badRequest(c, "Email and amount required")
		return
	}

	view, err := h.service.TopUp(c.Request.Context(), req.Email, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWallet(view))
}
