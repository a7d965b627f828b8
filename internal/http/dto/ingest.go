package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CustomerRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Email string  `json:"email" binding:"required,email"`
}

type OrderRequest struct {
	OrderDate time.Time       `json:"orderDate"`
	Amount    decimal.Decimal `json:"amount"`
	Email     string          `json:"email" binding:"required,email"`
	Items     []string        `json:"items"`
}

type IngestResponse struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	Queued       int      `json:"queued"`
	FailedEmails []string `json:"failed_emails,omitempty"`
}
