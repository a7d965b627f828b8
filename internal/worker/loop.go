package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"minicrm.app/pipeline/common/logger"
	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/queue"
)

// State is where a worker loop is in its poll cycle.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateDecoding
	StateWriting
	StateAcking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateDecoding:
		return "decoding"
	case StateWriting:
		return "batch_writing"
	case StateAcking:
		return "acking"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type Config struct {
	Name      string // short label used in logs, e.g. "customer"
	Stream    string
	Group     string
	Consumer  string
	BatchSize int64
	Block     time.Duration

	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

type Option func(*options)

type options struct {
	clock   clockwork.Clock
	metrics *Metrics
}

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// loop is the poll-cycle driver shared by every stream worker: it isolates
// failures per cycle, backs off after errors and stops on cancellation or Stop.
type loop struct {
	cfg     Config
	clock   clockwork.Clock
	metrics *Metrics
	backoff *backoff.ExponentialBackOff
	state   atomic.Int32
	stop    *stopper
}

// stopper carries a Stop request across restarts. The stop signal is closed
// once and stays closed; every run gets its own done channel, so a runner the
// supervisor restarts never closes a channel twice.
type stopper struct {
	once sync.Once
	ch   chan struct{}

	mu   sync.Mutex
	done chan struct{}
}

func newStopper() *stopper {
	return &stopper{ch: make(chan struct{})}
}

// begin marks a run as started and returns the func that marks it finished.
func (s *stopper) begin() (finish func()) {
	done := make(chan struct{})
	s.mu.Lock()
	s.done = done
	s.mu.Unlock()
	return func() { close(done) }
}

// request signals Stop and waits for the current run, if any, to return.
func (s *stopper) request() {
	s.once.Do(func() { close(s.ch) })
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func newLoop(cfg Config, o options) *loop {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	if cfg.BackoffInitial > 0 {
		b.InitialInterval = cfg.BackoffInitial
	}
	if cfg.BackoffMax > 0 {
		b.MaxInterval = cfg.BackoffMax
	} else {
		b.MaxInterval = 5 * time.Second
	}
	b.Reset()

	return &loop{
		cfg:     cfg,
		clock:   o.clock,
		metrics: o.metrics,
		backoff: b,
		stop:    newStopper(),
	}
}

func (l *loop) State() State {
	return State(l.state.Load())
}

func (l *loop) setState(s State) {
	l.state.Store(int32(s))
}

func (l *loop) logContext(ctx context.Context) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{
		Stream:    logger.Ptr(l.cfg.Stream),
		Consumer:  logger.Ptr(l.cfg.Consumer),
		Component: "pipeline.worker." + l.cfg.Name,
	})
}

// run calls cycle until ctx is cancelled or Stop is called. A cycle in flight
// when that happens sees its context cancelled; cycles protect their writes
// with context.WithoutCancel.
func (l *loop) run(ctx context.Context, cycle func(ctx context.Context) error) {
	defer l.stop.begin()()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stop.ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.InfoContext(ctx, "worker started", "group", l.cfg.Group, "batch_size", l.cfg.BatchSize)

	for {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "worker stopping")
			return
		}

		err := l.safeCycle(ctx, cycle)
		l.setState(StateIdle)
		if err == nil {
			l.backoff.Reset()
			continue
		}
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			continue
		}

		wait := l.backoff.NextBackOff()
		var terr *queue.TransportError
		if errors.As(err, &terr) {
			slog.ErrorContext(ctx, "stream transport error", "error", err, "retry_in", wait)
		} else {
			slog.ErrorContext(ctx, "batch processing error", "error", err, "retry_in", wait)
		}
		l.metrics.failed(l.cfg.Stream)

		select {
		case <-ctx.Done():
		case <-l.clock.After(wait):
		}
	}
}

func (l *loop) safeCycle(ctx context.Context, cycle func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in poll cycle", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cycle(ctx)
}

// Stop signals the loop to finish its current cycle and waits for it to return.
func (l *loop) Stop() {
	l.stop.request()
}

// settle dead-letters rejected items and, when written is true, acknowledges
// every other item of the batch in one call.
func (l *loop) settle(ctx context.Context, consumer Consumer, items []queue.WorkItem, rejected []Rejection, written bool) error {
	l.setState(StateAcking)

	skip := make(map[string]struct{}, len(rejected))
	for _, r := range rejected {
		skip[r.Item.ID] = struct{}{}
		if err := consumer.DeadLetter(ctx, r.Item, r.Err.Error()); err != nil {
			return fmt.Errorf("dead-lettering %s: %w", r.Item.ID, err)
		}
		l.metrics.deadLettered(l.cfg.Stream, rejectionReason(r.Err))
	}

	if !written {
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := skip[item.ID]; !ok {
			ids = append(ids, item.ID)
		}
	}
	if err := consumer.Ack(ctx, ids...); err != nil {
		return err
	}
	l.metrics.acked(l.cfg.Stream, len(ids))
	return nil
}

// Decoded pairs a work item with its decoded payload.
type Decoded[T any] struct {
	Item  queue.WorkItem
	Value T
}

// decodeAll decodes every item on its own; one bad item never affects the rest.
func decodeAll[T any](ctx context.Context, items []queue.WorkItem, decode func(codec.Fields) (T, error)) ([]Decoded[T], []Rejection) {
	decoded := make([]Decoded[T], 0, len(items))
	var rejected []Rejection
	for _, item := range items {
		v, err := decode(item.Fields)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed work item", "message_id", item.ID, "error", err)
			rejected = append(rejected, Rejection{Item: item, Err: err})
			continue
		}
		decoded = append(decoded, Decoded[T]{Item: item, Value: v})
	}
	return decoded, rejected
}

func itemsOf[T any](entries []Decoded[T]) []queue.WorkItem {
	items := make([]queue.WorkItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.Item)
	}
	return items
}
