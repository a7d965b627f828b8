package model

import "time"

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// Terminal reports whether the status is a final vendor outcome.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusFailed
}

type CommunicationLog struct {
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Message         string         `json:"message"`
	VendorReference string         `json:"vendor_reference"`
	DeliveryStatus  DeliveryStatus `json:"delivery_status"`
	ID              int64          `json:"id"`
	CampaignID      int64          `json:"campaign_id"`
	CustomerID      int64          `json:"customer_id"`
}

// LogKey identifies the communication log a delivery outcome belongs to.
type LogKey struct {
	CampaignID int64
	CustomerID int64
}

// StatusChange is one delivery outcome to apply to a pending log.
type StatusChange struct {
	Message         string
	VendorReference string
	Status          DeliveryStatus
	CampaignID      int64
	CustomerID      int64
}

func (c StatusChange) Key() LogKey {
	return LogKey{CampaignID: c.CampaignID, CustomerID: c.CustomerID}
}
