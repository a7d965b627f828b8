package worker

import (
	"context"
	"time"

	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/queue"
	"minicrm.app/pipeline/internal/store"
)

// Consumer abstracts the stream transport for testability.
type Consumer interface {
	Read(ctx context.Context, count int64, block time.Duration) ([]queue.WorkItem, error)
	ReadPending(ctx context.Context, count int64) ([]queue.WorkItem, error)
	Ack(ctx context.Context, ids ...string) error
	DeadLetter(ctx context.Context, item queue.WorkItem, reason string) error
	Claim(ctx context.Context, minIdle time.Duration, count int64) ([]queue.ClaimedItem, error)
}

// Mirrors service.StoreProvider - defined here to avoid import cycles.
type StoreProvider interface {
	Customers() store.CustomerStore
	Orders() store.OrderStore
	Campaigns() store.CampaignStore
	CommunicationLogs() store.CommunicationLogStore
}

// Mirrors service.TxRunner - defined here to avoid import cycles.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

// Handler decodes work items of one stream and writes a decoded batch.
// Decode must be pure. Write must be safe to repeat for the same items, since
// a batch that is not acknowledged is delivered again.
type Handler[T any] interface {
	Decode(fields codec.Fields) (T, error)
	Write(ctx context.Context, batch []Decoded[T]) (Result, error)
}

// BatchProcessor runs already-delivered items to completion through consumer,
// acknowledging what it finishes. The reclaimer hands it claimed items.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, consumer Consumer, items []queue.WorkItem) error
}

// Result is what a handler did with a batch. Rejected items are dead-lettered
// whether or not the batch write succeeded; they can never succeed.
type Result struct {
	Rejected []Rejection
	Written  int
}

type Rejection struct {
	Item queue.WorkItem
	Err  error
}

func (r *Result) reject(item queue.WorkItem, err error) {
	r.Rejected = append(r.Rejected, Rejection{Item: item, Err: err})
}
