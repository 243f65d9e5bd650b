package api

import (
	"net/http"

	"github.com/Domenick1991/skybook/internal/service/payments"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service payments.PaymentUseCase
}

type capturePaymentRequest struct {
	BookingID     int64  `json:"bookingId" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,min=1"`
	PaymentMethod string `json:"paymentMethod"`
}

func NewPaymentHandler(service payments.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.capture)
	router.GET("", h.list)
}

func (h *PaymentHandler) capture(c *gin.Context) {
	var req capturePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	payment, err := h.service.Capture(c.Request.Context(), payments.CaptureInput{
		BookingID: req.BookingID,
		Amount:    req.Amount,
		Method:    req.PaymentMethod,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"payment": toPayment(payment),
		"message": "Payment processed successfully (mock)",
	})
}

func (h *PaymentHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]paymentResponse, 0, len(list))
	for i := range list {
		out = append(out, toPayment(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}
