package store

import (
	"context"
	"encoding/json"
	"time"

	"minicrm.app/pipeline/core/db/sqlc"
	"minicrm.app/pipeline/internal/model"
)

type orderStore struct {
	queries *sqlc.Queries
}

func newOrderStore(queries *sqlc.Queries) OrderStore {
	return &orderStore{queries: queries}
}

func (s *orderStore) InsertMany(ctx context.Context, orders []model.Order) ([]model.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	n := len(orders)
	arg := sqlc.InsertOrdersParams{
		Ids:           make([]int64, 0, n),
		OwnerIds:      make([]string, 0, n),
		CustomerIds:   make([]int64, 0, n),
		Emails:        make([]string, 0, n),
		Amounts:       make([]string, 0, n),
		OrderDates:    make([]time.Time, 0, n),
		Items:         make([]string, 0, n),
		SourceItemIds: make([]string, 0, n),
	}
	for _, o := range orders {
		lineItems := o.Items
		if lineItems == nil {
			lineItems = []string{}
		}
		encoded, err := json.Marshal(lineItems)
		if err != nil {
			return nil, err
		}
		arg.Ids = append(arg.Ids, o.ID)
		arg.OwnerIds = append(arg.OwnerIds, o.OwnerID)
		arg.CustomerIds = append(arg.CustomerIds, o.CustomerID)
		arg.Emails = append(arg.Emails, o.Email)
		arg.Amounts = append(arg.Amounts, o.Amount.String())
		arg.OrderDates = append(arg.OrderDates, o.OrderDate)
		arg.Items = append(arg.Items, string(encoded))
		arg.SourceItemIds = append(arg.SourceItemIds, o.SourceItemID)
	}

	rows, err := s.queries.InsertOrders(ctx, arg)
	if err != nil {
		return nil, &BulkWriteError{Op: "order insert", Rows: n, Err: err}
	}

	inserted := make([]model.Order, 0, len(rows))
	for _, row := range rows {
		o, err := toOrderModel(row)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, *o)
	}
	return inserted, nil
}

// toOrderModel converts sqlc.Order to model.Order
func toOrderModel(row sqlc.Order) (*model.Order, error) {
	items := []string{}
	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &items); err != nil {
			return nil, err
		}
	}
	return &model.Order{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		CustomerID:   row.CustomerID,
		Email:        row.Email,
		Amount:       row.Amount,
		OrderDate:    row.OrderDate,
		Items:        items,
		SourceItemID: row.SourceItemID,
		CreatedAt:    row.CreatedAt,
	}, nil
}
