package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"minicrm.app/pipeline/common/id"
	"minicrm.app/pipeline/common/logger"
	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/queue"
	"minicrm.app/pipeline/internal/store"
)

type CustomerInput struct {
	Name  *string
	Phone *string
	Email string
}

type OrderInput struct {
	OrderDate time.Time
	Email     string
	Items     []string
	Amount    decimal.Decimal
}

type OrderIngestResult struct {
	// FailedEmails lists emails with no customer for the owner, once each,
	// in request order. Their orders were not published.
	FailedEmails []string
	Published    int
}

// IngestService turns API payloads into customer_ingestion and order_ingestion
// work items. It returns once the items are on the stream.
type IngestService interface {
	IngestCustomers(ctx context.Context, ownerID string, customers []CustomerInput) (int, error)
	IngestOrders(ctx context.Context, ownerID string, orders []OrderInput) (*OrderIngestResult, error)
}

type ingestService struct {
	customers      store.CustomerStore
	producer       queue.Producer
	customerStream string
	orderStream    string
}

func NewIngestService(customers store.CustomerStore, producer queue.Producer, customerStream, orderStream string) IngestService {
	return &ingestService{
		customers:      customers,
		producer:       producer,
		customerStream: customerStream,
		orderStream:    orderStream,
	}
}

func (s *ingestService) IngestCustomers(ctx context.Context, ownerID string, customers []CustomerInput) (int, error) {
	if len(customers) == 0 {
		return 0, invalid("customers", "at least one customer is required")
	}

	records := make([]codec.Fields, 0, len(customers))
	for i, c := range customers {
		email, err := normalizeEmail(c.Email)
		if err != nil {
			return 0, invalid(fmt.Sprintf("customers[%d].email", i), "%v", err)
		}
		records = append(records, codec.EncodeCustomer(codec.CustomerRecord{
			OwnerID: ownerID,
			Email:   email,
			Name:    c.Name,
			Phone:   c.Phone,
		}))
	}

	if _, err := s.producer.Publish(ctx, s.customerStream, records...); err != nil {
		return 0, fmt.Errorf("publishing customers: %w", err)
	}

	slog.InfoContext(ctx, "customers queued for ingestion", "count", len(records))
	return len(records), nil
}

// IngestOrders resolves every order's customer with one lookup and publishes
// only the orders it could resolve.
func (s *ingestService) IngestOrders(ctx context.Context, ownerID string, orders []OrderInput) (*OrderIngestResult, error) {
	if len(orders) == 0 {
		return nil, invalid("orders", "at least one order is required")
	}

	emails := make([]string, len(orders))
	keys := make([]model.CustomerKey, 0, len(orders))
	seen := make(map[string]struct{}, len(orders))
	for i, o := range orders {
		email, err := normalizeEmail(o.Email)
		if err != nil {
			return nil, invalid(fmt.Sprintf("orders[%d].email", i), "%v", err)
		}
		if !o.Amount.IsPositive() {
			return nil, invalid(fmt.Sprintf("orders[%d].amount", i), "must be positive")
		}
		if o.OrderDate.IsZero() {
			return nil, invalid(fmt.Sprintf("orders[%d].orderDate", i), "is required")
		}
		emails[i] = email
		if _, ok := seen[email]; !ok {
			seen[email] = struct{}{}
			keys = append(keys, model.CustomerKey{OwnerID: ownerID, Email: email})
		}
	}

	resolved, err := s.customers.Resolve(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("resolving customers: %w", err)
	}

	result := &OrderIngestResult{}
	failed := make(map[string]struct{})
	records := make([]codec.Fields, 0, len(orders))
	for i, o := range orders {
		customerID, ok := resolved[model.CustomerKey{OwnerID: ownerID, Email: emails[i]}]
		if !ok {
			if _, dup := failed[emails[i]]; !dup {
				failed[emails[i]] = struct{}{}
				result.FailedEmails = append(result.FailedEmails, emails[i])
			}
			continue
		}
		records = append(records, codec.EncodeOrder(codec.OrderRecord{
			OwnerID:    ownerID,
			CustomerID: logger.Ptr(id.Format(customerID)),
			Email:      emails[i],
			Amount:     o.Amount,
			OrderDate:  o.OrderDate,
			Items:      o.Items,
		}))
	}

	if len(records) > 0 {
		if _, err := s.producer.Publish(ctx, s.orderStream, records...); err != nil {
			return nil, fmt.Errorf("publishing orders: %w", err)
		}
	}
	result.Published = len(records)

	if len(result.FailedEmails) > 0 {
		slog.WarnContext(ctx, "orders skipped for unknown customers",
			"published", result.Published, "failed_emails", len(result.FailedEmails))
	} else {
		slog.InfoContext(ctx, "orders queued for ingestion", "count", result.Published)
	}
	return result, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%q is not an email address", raw)
	}
	return email, nil
}
