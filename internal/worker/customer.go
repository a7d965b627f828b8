package worker

import (
	"context"

	"minicrm.app/pipeline/common/id"
	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/store"
)

// CustomerIngestor upserts customer_ingestion items keyed by (owner, email).
type CustomerIngestor struct {
	customers store.CustomerStore
	newID     func() int64
}

func NewCustomerIngestor(customers store.CustomerStore) *CustomerIngestor {
	return &CustomerIngestor{customers: customers, newID: id.New}
}

func (c *CustomerIngestor) Decode(fields codec.Fields) (codec.CustomerRecord, error) {
	return codec.DecodeCustomer(fields)
}

func (c *CustomerIngestor) Write(ctx context.Context, batch []Decoded[codec.CustomerRecord]) (Result, error) {
	records := make([]codec.CustomerRecord, 0, len(batch))
	for _, entry := range batch {
		records = append(records, entry.Value)
	}

	upserts := MergeCustomers(records, c.newID)
	if _, err := c.customers.Upsert(ctx, upserts); err != nil {
		return Result{}, err
	}
	return Result{Written: len(upserts)}, nil
}

// MergeCustomers collapses records for the same (owner, email) into one upsert,
// applying them in order so later provided fields win. The output keeps the
// order in which keys first appear.
func MergeCustomers(records []codec.CustomerRecord, newID func() int64) []model.CustomerUpsert {
	index := make(map[model.CustomerKey]int, len(records))
	out := make([]model.CustomerUpsert, 0, len(records))

	for _, r := range records {
		key := model.CustomerKey{OwnerID: r.OwnerID, Email: r.Email}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, model.CustomerUpsert{
				ID:      newID(),
				OwnerID: r.OwnerID,
				Email:   r.Email,
				Name:    r.Name,
				Phone:   r.Phone,
			})
			continue
		}
		if r.Name != nil {
			out[i].Name = r.Name
		}
		if r.Phone != nil {
			out[i].Phone = r.Phone
		}
	}
	return out
}
