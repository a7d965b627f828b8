package worker

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type BatchState int

const (
	BatchCollecting BatchState = iota
	BatchFlushing
)

func (s BatchState) String() string {
	switch s {
	case BatchCollecting:
		return "collecting"
	case BatchFlushing:
		return "flushing"
	default:
		return fmt.Sprintf("BatchState(%d)", int(s))
	}
}

// Batcher accumulates items until it holds maxSize of them or maxWait has
// passed since the last flush, whichever comes first. The deadline moves only
// when a flush commits; adding items never extends it.
//
// Not safe for concurrent use; one worker loop owns a batcher.
type Batcher[T any] struct {
	clock    clockwork.Clock
	items    []T
	deadline time.Time
	maxSize  int
	maxWait  time.Duration
	state    BatchState
}

func NewBatcher[T any](clock clockwork.Clock, maxSize int, maxWait time.Duration) *Batcher[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Batcher[T]{
		clock:    clock,
		items:    make([]T, 0, maxSize),
		deadline: clock.Now().Add(maxWait),
		maxSize:  maxSize,
		maxWait:  maxWait,
		state:    BatchCollecting,
	}
}

func (b *Batcher[T]) State() BatchState {
	return b.state
}

func (b *Batcher[T]) Len() int {
	return len(b.items)
}

// Remaining is how many more items fit before the size threshold.
func (b *Batcher[T]) Remaining() int {
	if n := b.maxSize - len(b.items); n > 0 {
		return n
	}
	return 0
}

// Add appends items. It panics if called while a flush is in progress.
func (b *Batcher[T]) Add(items ...T) {
	if b.state != BatchCollecting {
		panic("batcher: Add during flush")
	}
	b.items = append(b.items, items...)
}

// Ready reports whether the batch should be flushed now. A due deadline makes
// an empty batch ready too, so the timer restarts.
func (b *Batcher[T]) Ready() bool {
	return len(b.items) >= b.maxSize || !b.clock.Now().Before(b.deadline)
}

// Until is the time left before the deadline, never negative.
func (b *Batcher[T]) Until() time.Duration {
	if d := b.deadline.Sub(b.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Begin enters Flushing and returns the held items. The batcher keeps them
// until Commit.
func (b *Batcher[T]) Begin() []T {
	b.state = BatchFlushing
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Commit drops the flushed items and restarts the timer.
func (b *Batcher[T]) Commit() {
	b.items = b.items[:0]
	b.deadline = b.clock.Now().Add(b.maxWait)
	b.state = BatchCollecting
}

// Abort returns to Collecting with the items and deadline untouched, so the
// batch stays ready and is retried.
func (b *Batcher[T]) Abort() {
	b.state = BatchCollecting
}
