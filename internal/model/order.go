package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	OrderDate time.Time `json:"order_date"`
	CreatedAt time.Time `json:"created_at"`
	Email     string    `json:"email"`
	OwnerID   string    `json:"owner_id"`
	// SourceItemID is the stream entry the order was ingested from.
	SourceItemID string          `json:"source_item_id"`
	Items        []string        `json:"items"`
	Amount       decimal.Decimal `json:"amount"`
	ID           int64           `json:"id"`
	CustomerID   int64           `json:"customer_id"`
}
