package codec

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	FieldCustomerID = "customerId"
	FieldOrderDate  = "orderDate"
	FieldAmount     = "amount"
	FieldItems      = "items"
)

// OrderRecord is an order_ingestion work item. CustomerID is an opaque,
// informational reference; workers resolve the customer from (OwnerID, Email).
type OrderRecord struct {
	OrderDate  time.Time
	CustomerID *string
	Email      string
	OwnerID    string
	Items      []string
	Amount     decimal.Decimal
}

func DecodeOrder(f Fields) (OrderRecord, error) {
	owner, err := f.Required(FieldOwner)
	if err != nil {
		return OrderRecord{}, err
	}
	email, err := f.Required(FieldEmail)
	if err != nil {
		return OrderRecord{}, err
	}
	amount, err := f.Decimal(FieldAmount)
	if err != nil {
		return OrderRecord{}, err
	}
	if amount.IsNegative() {
		return OrderRecord{}, malformed(FieldAmount, amount.String(), "must not be negative")
	}
	orderDate, err := f.Time(FieldOrderDate)
	if err != nil {
		return OrderRecord{}, err
	}
	items, err := f.JSONStrings(FieldItems)
	if err != nil {
		return OrderRecord{}, err
	}
	return OrderRecord{
		OwnerID:    owner,
		Email:      normalizeEmail(email),
		Amount:     amount,
		OrderDate:  orderDate,
		Items:      items,
		CustomerID: f.OptionalPtr(FieldCustomerID),
	}, nil
}

func EncodeOrder(r OrderRecord) Fields {
	items := r.Items
	if items == nil {
		items = []string{}
	}
	f := Fields{
		FieldOwner:     r.OwnerID,
		FieldEmail:     r.Email,
		FieldAmount:    r.Amount.String(),
		FieldOrderDate: formatTime(r.OrderDate),
		FieldItems:     encodeJSON(items),
	}
	if r.CustomerID != nil {
		f[FieldCustomerID] = *r.CustomerID
	}
	return f
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
