package model

import (
	"encoding/json"
	"time"
)

type CampaignStatus string

const (
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
)

type CampaignLogic string

const (
	CampaignLogicAnd CampaignLogic = "AND"
	CampaignLogicOr  CampaignLogic = "OR"
)

type DeliveryStats struct {
	Sent   int32 `json:"sent"`
	Failed int32 `json:"failed"`
}

func (s DeliveryStats) Total() int32 {
	return s.Sent + s.Failed
}

type Campaign struct {
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Rules         json.RawMessage `json:"rules"`
	Name          string          `json:"name"`
	Objective     string          `json:"objective"`
	OwnerID       string          `json:"owner_id"`
	Logic         CampaignLogic   `json:"logic"`
	Status        CampaignStatus  `json:"status"`
	DeliveryStats DeliveryStats   `json:"delivery_stats"`
	ID            int64           `json:"id"`
	AudienceSize  int32           `json:"audience_size"`
}

// Delivered reports whether every recipient has a terminal outcome.
func (c Campaign) Delivered() bool {
	return c.DeliveryStats.Total() >= c.AudienceSize
}

// CampaignDelta is the per-batch tally added to a campaign's delivery stats.
type CampaignDelta struct {
	CampaignID int64
	Sent       int32
	Failed     int32
}

// CampaignProgress is the state of a campaign's counters right after an increment.
type CampaignProgress struct {
	Status        CampaignStatus
	DeliveryStats DeliveryStats
	CampaignID    int64
	AudienceSize  int32
}
