package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	LastPurchased *time.Time      `json:"last_purchased,omitempty"`
	Name          *string         `json:"name,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	Email         string          `json:"email"`
	OwnerID       string          `json:"owner_id"`
	TotalSpend    decimal.Decimal `json:"total_spend"`
	ID            int64           `json:"id"`
	Visits        int32           `json:"visits"`
}

// CustomerKey is the natural identity customers are upserted by. OwnerID is
// opaque: whatever identifier the producing CRM account uses.
type CustomerKey struct {
	OwnerID string
	Email   string
}

// CustomerUpsert carries the fields one ingestion batch sets on a customer.
// Nil fields leave the stored value untouched.
type CustomerUpsert struct {
	Name    *string
	Phone   *string
	Email   string
	OwnerID string
	ID      int64 // used only when the row is inserted
}

func (u CustomerUpsert) Key() CustomerKey {
	return CustomerKey{OwnerID: u.OwnerID, Email: u.Email}
}

// SpendDelta is the accumulated effect of one batch of orders on one customer.
type SpendDelta struct {
	LastPurchased time.Time
	Amount        decimal.Decimal
	CustomerID    int64
	Orders        int32
}
