package store

import "minicrm.app/pipeline/core/db/sqlc"

// Stores hands out stores bound to one set of queries. The queries may be
// backed by the pool or by a transaction:
//
//	err := database.WithTx(ctx, func(q *sqlc.Queries) error {
//	    stores := store.NewStores(q)
//	    ...
//	})
type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Customers() CustomerStore {
	return newCustomerStore(s.queries)
}

func (s *Stores) Orders() OrderStore {
	return newOrderStore(s.queries)
}

func (s *Stores) Campaigns() CampaignStore {
	return newCampaignStore(s.queries)
}

func (s *Stores) CommunicationLogs() CommunicationLogStore {
	return newCommunicationLogStore(s.queries)
}
