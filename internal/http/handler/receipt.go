package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/internal/http/dto"
	"minicrm.app/pipeline/internal/service"
	"minicrm.app/pipeline/internal/vendor"
)

// ReceiptHandler takes the vendor's delivery callbacks.
type ReceiptHandler struct {
	service service.ReceiptService
}

func NewReceiptHandler(service service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{service: service}
}

func (h *ReceiptHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()

	var req vendor.Receipt
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	update, err := req.Update()
	if err != nil {
		badRequest(c, err)
		return
	}

	msgID, err := h.service.Record(ctx, update)
	if err != nil {
		respondError(c, err, "record receipt")
		return
	}

	c.JSON(http.StatusAccepted, dto.ReceiptResponse{MessageID: msgID})
}
