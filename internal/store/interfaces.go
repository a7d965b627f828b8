package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"minicrm.app/pipeline/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// BulkWriteError is returned when the database rejects a whole batch statement.
type BulkWriteError struct {
	Op   string
	Rows int
	Err  error
}

func (e *BulkWriteError) Error() string {
	return fmt.Sprintf("bulk %s of %d rows: %v", e.Op, e.Rows, e.Err)
}

func (e *BulkWriteError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a rejection that retrying the same rows
// cannot fix: data exceptions (class 22) and constraint violations (class 23).
func IsPermanent(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
}

// CustomerStore defines the contract for customer data access
type CustomerStore interface {
	// Upsert inserts or updates customers keyed by (owner_id, email). Keys must be
	// unique within one call; nil fields keep the stored value.
	Upsert(ctx context.Context, customers []model.CustomerUpsert) (int64, error)
	// Resolve looks up customer ids for a set of keys in one query. Unknown keys
	// are absent from the result.
	Resolve(ctx context.Context, keys []model.CustomerKey) (map[model.CustomerKey]int64, error)
	// ApplySpendDeltas adds each delta to total_spend and visits and sets last_purchased.
	ApplySpendDeltas(ctx context.Context, deltas []model.SpendDelta) error
	GetByKey(ctx context.Context, key model.CustomerKey) (*model.Customer, error)
}

// OrderStore defines the contract for order data access
type OrderStore interface {
	// InsertMany inserts orders, skipping any whose source_item_id already exists,
	// and returns only the rows actually inserted.
	InsertMany(ctx context.Context, orders []model.Order) ([]model.Order, error)
}

// CampaignStore defines the contract for campaign data access
type CampaignStore interface {
	Create(ctx context.Context, campaign *model.Campaign) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	// IncrementDeliveryStats adds every delta in one statement and returns the
	// counters as they stand after the increment.
	IncrementDeliveryStats(ctx context.Context, deltas []model.CampaignDelta) ([]model.CampaignProgress, error)
	// Complete marks running campaigns whose counters cover the audience as
	// completed and returns the ids that changed.
	Complete(ctx context.Context, ids []int64) ([]int64, error)
}

// CommunicationLogStore defines the contract for communication log data access
type CommunicationLogStore interface {
	// CreatePending inserts pending logs, ignoring (campaign, customer) pairs that exist.
	CreatePending(ctx context.Context, logs []model.CommunicationLog) (int64, error)
	// ApplyStatuses moves pending logs to their terminal status and returns the
	// changes that took effect. Logs already terminal are left untouched.
	ApplyStatuses(ctx context.Context, changes []model.StatusChange) ([]model.StatusChange, error)
	GetByKey(ctx context.Context, key model.LogKey) (*model.CommunicationLog, error)
}
