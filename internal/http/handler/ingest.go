package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/internal/http/dto"
	"minicrm.app/pipeline/internal/http/middleware"
	"minicrm.app/pipeline/internal/service"
)

type IngestHandler struct {
	service service.IngestService
}

func NewIngestHandler(service service.IngestService) *IngestHandler {
	return &IngestHandler{service: service}
}

func (h *IngestHandler) Customers(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.OneOrMany[dto.CustomerRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inputs := make([]service.CustomerInput, 0, len(req))
	for _, r := range req {
		inputs = append(inputs, service.CustomerInput{Name: r.Name, Phone: r.Phone, Email: r.Email})
	}

	n, err := h.service.IngestCustomers(ctx, middleware.OwnerID(ctx), inputs)
	if err != nil {
		respondError(c, err, "ingest customers")
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestResponse{
		Success: true,
		Message: fmt.Sprintf("%d customers queued", n),
		Queued:  n,
	})
}

// Orders answers 207 when some orders name unknown customers; the others
// are queued regardless.
func (h *IngestHandler) Orders(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.OneOrMany[dto.OrderRequest]
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	inputs := make([]service.OrderInput, 0, len(req))
	for _, r := range req {
		inputs = append(inputs, service.OrderInput{
			Email:     r.Email,
			OrderDate: r.OrderDate,
			Amount:    r.Amount,
			Items:     r.Items,
		})
	}

	result, err := h.service.IngestOrders(ctx, middleware.OwnerID(ctx), inputs)
	if err != nil {
		respondError(c, err, "ingest orders")
		return
	}

	if len(result.FailedEmails) > 0 {
		c.JSON(http.StatusMultiStatus, dto.IngestResponse{
			Success:      false,
			Message:      "some orders failed due to missing customers",
			Queued:       result.Published,
			FailedEmails: result.FailedEmails,
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestResponse{
		Success: true,
		Message: fmt.Sprintf("%d orders queued", result.Published),
		Queued:  result.Published,
	})
}
