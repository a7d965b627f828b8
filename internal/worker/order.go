package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"minicrm.app/pipeline/common/id"
	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/store"
)

// OrderIngestor inserts order_ingestion items and folds their amounts into
// the owning customers' spend totals.
type OrderIngestor struct {
	customers store.CustomerStore
	txRunner  TxRunner
	newID     func() int64
}

func NewOrderIngestor(customers store.CustomerStore, txRunner TxRunner) *OrderIngestor {
	return &OrderIngestor{customers: customers, txRunner: txRunner, newID: id.New}
}

func (o *OrderIngestor) Decode(fields codec.Fields) (codec.OrderRecord, error) {
	return codec.DecodeOrder(fields)
}

// Write resolves every customer with one lookup, rejects orders for unknown
// customers, then inserts the rest and applies one spend delta per customer
// in a single transaction. Orders already inserted by an earlier delivery of
// the same item are skipped and contribute no delta.
func (o *OrderIngestor) Write(ctx context.Context, batch []Decoded[codec.OrderRecord]) (Result, error) {
	var res Result

	keys := make([]model.CustomerKey, 0, len(batch))
	seen := make(map[model.CustomerKey]struct{}, len(batch))
	for _, entry := range batch {
		key := model.CustomerKey{OwnerID: entry.Value.OwnerID, Email: entry.Value.Email}
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	resolved, err := o.customers.Resolve(ctx, keys)
	if err != nil {
		return res, fmt.Errorf("resolving customers: %w", err)
	}

	orders := make([]model.Order, 0, len(batch))
	for _, entry := range batch {
		r := entry.Value
		customerID, ok := resolved[model.CustomerKey{OwnerID: r.OwnerID, Email: r.Email}]
		if !ok {
			err := &UnresolvedReferenceError{OwnerID: r.OwnerID, Email: r.Email}
			slog.WarnContext(ctx, "skipping order for unknown customer",
				"message_id", entry.Item.ID, "owner_id", r.OwnerID, "email", r.Email)
			res.reject(entry.Item, err)
			continue
		}
		orders = append(orders, model.Order{
			ID:           o.newID(),
			OwnerID:      r.OwnerID,
			CustomerID:   customerID,
			Email:        r.Email,
			Amount:       r.Amount,
			OrderDate:    r.OrderDate,
			Items:        r.Items,
			SourceItemID: entry.Item.ID,
		})
	}
	if len(orders) == 0 {
		return res, nil
	}

	err = o.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		inserted, err := sp.Orders().InsertMany(ctx, orders)
		if err != nil {
			return err
		}
		if len(inserted) < len(orders) {
			slog.InfoContext(ctx, "skipped orders already ingested", "count", len(orders)-len(inserted))
		}

		isNew := make(map[string]struct{}, len(inserted))
		for _, ins := range inserted {
			isNew[ins.SourceItemID] = struct{}{}
		}
		fresh := make([]model.Order, 0, len(inserted))
		for _, ord := range orders {
			if _, ok := isNew[ord.SourceItemID]; ok {
				fresh = append(fresh, ord)
			}
		}

		res.Written = len(fresh)
		return sp.Customers().ApplySpendDeltas(ctx, AccumulateSpend(fresh))
	})
	if err != nil {
		res.Written = 0
		return res, err
	}
	return res, nil
}

// AccumulateSpend sums orders per customer. The last order in slice order sets
// the purchase date.
func AccumulateSpend(orders []model.Order) []model.SpendDelta {
	index := make(map[int64]int, len(orders))
	out := make([]model.SpendDelta, 0, len(orders))

	for _, ord := range orders {
		i, ok := index[ord.CustomerID]
		if !ok {
			index[ord.CustomerID] = len(out)
			out = append(out, model.SpendDelta{CustomerID: ord.CustomerID, Amount: decimal.Zero})
			i = len(out) - 1
		}
		out[i].Amount = out[i].Amount.Add(ord.Amount)
		out[i].Orders++
		out[i].LastPurchased = ord.OrderDate
	}
	return out
}
