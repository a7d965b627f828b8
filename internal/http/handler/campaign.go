package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"minicrm.app/pipeline/internal/http/dto"
	"minicrm.app/pipeline/internal/http/middleware"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/service"
)

type CampaignHandler struct {
	service service.CampaignService
}

func NewCampaignHandler(service service.CampaignService) *CampaignHandler {
	return &CampaignHandler{service: service}
}

func (h *CampaignHandler) Dispatch(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	params := service.DispatchParams{
		OwnerID:         middleware.OwnerID(ctx),
		Name:            req.Name,
		Objective:       req.Objective,
		Rules:           req.Rules,
		Logic:           model.CampaignLogic(req.Logic),
		Message:         req.Message,
		VendorReference: req.VendorReference,
		Recipients:      make([]service.Recipient, 0, len(req.Recipients)),
	}
	for _, r := range req.Recipients {
		params.Recipients = append(params.Recipients, service.Recipient{
			CustomerID: r.CustomerID,
			Email:      r.Email,
			Name:       r.Name,
		})
	}

	result, err := h.service.Dispatch(ctx, params)
	if err != nil {
		respondError(c, err, "dispatch campaign")
		return
	}

	c.JSON(http.StatusAccepted, dto.DispatchResponse{
		Campaign:      dto.NewCampaignResponse(result.Campaign),
		DeliveryItems: result.Items,
	})
}

func (h *CampaignHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	campaignID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid campaign id"})
		return
	}

	campaign, err := h.service.Get(ctx, middleware.OwnerID(ctx), campaignID)
	if err != nil {
		respondError(c, err, "fetch campaign")
		return
	}

	c.JSON(http.StatusOK, dto.NewCampaignResponse(campaign))
}
