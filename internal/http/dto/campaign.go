package dto

import (
	"encoding/json"
	"time"

	"minicrm.app/pipeline/common/id"
	"minicrm.app/pipeline/internal/model"
)

type RecipientRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	CustomerID int64  `json:"customerId,string" binding:"required"`
}

type DispatchRequest struct {
	Rules           json.RawMessage    `json:"rules"`
	Name            string             `json:"name" binding:"required"`
	Objective       string             `json:"objective"`
	Logic           string             `json:"logic" binding:"omitempty,oneof=AND OR"`
	Message         string             `json:"message" binding:"required"`
	VendorReference string             `json:"vendor_reference"`
	Recipients      []RecipientRequest `json:"recipients" binding:"dive"`
}

type CampaignResponse struct {
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Rules        json.RawMessage `json:"rules,omitempty"`
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Objective    string          `json:"objective"`
	Logic        string          `json:"logic"`
	Status       string          `json:"status"`
	AudienceSize int32           `json:"audience_size"`
	Sent         int32           `json:"sent"`
	Failed       int32           `json:"failed"`
}

type DispatchResponse struct {
	Campaign      CampaignResponse `json:"campaign"`
	DeliveryItems int              `json:"delivery_items"`
}

type ReceiptResponse struct {
	MessageID string `json:"message_id"`
}

func NewCampaignResponse(c *model.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:           id.Format(c.ID),
		Name:         c.Name,
		Objective:    c.Objective,
		Rules:        c.Rules,
		Logic:        string(c.Logic),
		Status:       string(c.Status),
		AudienceSize: c.AudienceSize,
		Sent:         c.DeliveryStats.Sent,
		Failed:       c.DeliveryStats.Failed,
		CreatedAt:    c.CreatedAt,
		CompletedAt:  c.CompletedAt,
	}
}
