package queue

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"minicrm.app/pipeline/internal/codec"
)

// WorkItem is one stream entry as delivered to a consumer.
type WorkItem struct {
	ID     string
	Stream string
	Fields codec.Fields
}

// ClaimedItem is a pending entry taken over from another consumer.
type ClaimedItem struct {
	WorkItem
	// Deliveries counts how many times the entry has been handed to a consumer.
	Deliveries int64
}

// TransportError wraps a failure talking to the stream server.
type TransportError struct {
	Op     string
	Stream string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s (stream=%s): %v", e.Op, e.Stream, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportErr(op, stream string, err error) error {
	return &TransportError{Op: op, Stream: stream, Err: err}
}

func toWorkItem(stream string, msg redis.XMessage) WorkItem {
	fields := make(codec.Fields, len(msg.Values))
	for k, v := range msg.Values {
		switch s := v.(type) {
		case string:
			fields[k] = s
		default:
			fields[k] = fmt.Sprint(v)
		}
	}
	return WorkItem{ID: msg.ID, Stream: stream, Fields: fields}
}

func toValues(fields codec.Fields) map[string]any {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return values
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
