package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"minicrm.app/pipeline/core/db/sqlc"
	"minicrm.app/pipeline/internal/model"
)

type customerStore struct {
	queries *sqlc.Queries
}

func newCustomerStore(queries *sqlc.Queries) CustomerStore {
	return &customerStore{queries: queries}
}

func (s *customerStore) Upsert(ctx context.Context, customers []model.CustomerUpsert) (int64, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	n := len(customers)
	arg := sqlc.UpsertCustomersParams{
		Ids:      make([]int64, 0, n),
		OwnerIds: make([]string, 0, n),
		Emails:   make([]string, 0, n),
		Names:    make([]string, 0, n),
		Phones:   make([]string, 0, n),
	}
	for _, c := range customers {
		arg.Ids = append(arg.Ids, c.ID)
		arg.OwnerIds = append(arg.OwnerIds, c.OwnerID)
		arg.Emails = append(arg.Emails, c.Email)
		arg.Names = append(arg.Names, deref(c.Name))
		arg.Phones = append(arg.Phones, deref(c.Phone))
	}

	affected, err := s.queries.UpsertCustomers(ctx, arg)
	if err != nil {
		return 0, &BulkWriteError{Op: "customer upsert", Rows: n, Err: err}
	}
	return affected, nil
}

func (s *customerStore) Resolve(ctx context.Context, keys []model.CustomerKey) (map[model.CustomerKey]int64, error) {
	resolved := make(map[model.CustomerKey]int64, len(keys))
	if len(keys) == 0 {
		return resolved, nil
	}

	arg := sqlc.ResolveCustomersParams{
		OwnerIds: make([]string, 0, len(keys)),
		Emails:   make([]string, 0, len(keys)),
	}
	for _, k := range keys {
		arg.OwnerIds = append(arg.OwnerIds, k.OwnerID)
		arg.Emails = append(arg.Emails, k.Email)
	}

	rows, err := s.queries.ResolveCustomers(ctx, arg)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		resolved[model.CustomerKey{OwnerID: row.OwnerID, Email: row.Email}] = row.ID
	}
	return resolved, nil
}

func (s *customerStore) ApplySpendDeltas(ctx context.Context, deltas []model.SpendDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	// Stable lock order across concurrent batches.
	sorted := make([]model.SpendDelta, len(deltas))
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CustomerID < sorted[j].CustomerID })

	n := len(sorted)
	arg := sqlc.ApplySpendDeltasParams{
		Ids:           make([]int64, 0, n),
		Amounts:       make([]string, 0, n),
		Orders:        make([]int32, 0, n),
		LastPurchased: make([]time.Time, 0, n),
	}
	for _, d := range sorted {
		arg.Ids = append(arg.Ids, d.CustomerID)
		arg.Amounts = append(arg.Amounts, d.Amount.String())
		arg.Orders = append(arg.Orders, d.Orders)
		arg.LastPurchased = append(arg.LastPurchased, d.LastPurchased)
	}

	if err := s.queries.ApplySpendDeltas(ctx, arg); err != nil {
		return &BulkWriteError{Op: "spend increment", Rows: n, Err: err}
	}
	return nil
}

func (s *customerStore) GetByKey(ctx context.Context, key model.CustomerKey) (*model.Customer, error) {
	row, err := s.queries.GetCustomerByKey(ctx, sqlc.GetCustomerByKeyParams{
		OwnerID: key.OwnerID,
		Email:   key.Email,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toCustomerModel(row), nil
}

// toCustomerModel converts sqlc.Customer to model.Customer
func toCustomerModel(row sqlc.Customer) *model.Customer {
	return &model.Customer{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Email:         row.Email,
		Name:          row.Name,
		Phone:         row.Phone,
		TotalSpend:    row.TotalSpend,
		Visits:        row.Visits,
		LastPurchased: row.LastPurchased,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
