package worker

import (
	"errors"
	"fmt"

	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/store"
)

// UnresolvedReferenceError is an order whose (owner, email) matches no customer.
type UnresolvedReferenceError struct {
	OwnerID string
	Email   string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("no customer with email %q for owner %q", e.Email, e.OwnerID)
}

// rejectionReason is the metrics label for a dead-lettered item.
func rejectionReason(err error) string {
	var (
		mfe *codec.MalformedFieldError
		ure *UnresolvedReferenceError
		mde *maxDeliveriesError
	)
	switch {
	case errors.As(err, &mfe):
		return "malformed"
	case errors.As(err, &ure):
		return "unresolved"
	case errors.As(err, &mde):
		return "max_deliveries"
	case store.IsPermanent(err):
		return "rejected"
	default:
		return "other"
	}
}

type maxDeliveriesError struct {
	deliveries int64
	limit      int64
}

func (e *maxDeliveriesError) Error() string {
	return fmt.Sprintf("delivered %d times, limit %d", e.deliveries, e.limit)
}
