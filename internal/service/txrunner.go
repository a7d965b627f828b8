package service

import (
	"context"

	"minicrm.app/pipeline/core/db"
	"minicrm.app/pipeline/core/db/sqlc"
	"minicrm.app/pipeline/internal/store"
)

// StoreProvider exposes only the stores needed by a transactional operation.
type StoreProvider interface {
	Customers() store.CustomerStore
	Orders() store.OrderStore
	Campaigns() store.CampaignStore
	CommunicationLogs() store.CommunicationLogStore
}

// TxRunner runs functions within a transaction and provides stores bound to that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

type dbTxRunner struct {
	db *db.DB
}

// NewTxRunner builds a TxRunner backed by the core DB.
func NewTxRunner(db *db.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(stores StoreProvider) error) error {
	return r.db.WithTx(ctx, func(q *sqlc.Queries) error {
		return fn(store.NewStores(q))
	})
}
