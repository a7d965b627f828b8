package worker

import (
	"context"
	"fmt"
	"log/slog"

	"minicrm.app/pipeline/common/logger"
	"minicrm.app/pipeline/internal/queue"
	"minicrm.app/pipeline/internal/store"
)

// Worker runs one consumer's poll loop over a stream:
// Idle → Reading → Decoding → BatchWriting → Acking → Idle.
// One batch is in flight at a time.
type Worker[T any] struct {
	*loop
	consumer Consumer
	handler  Handler[T]

	// replayPending makes the next cycle re-read this consumer's unacknowledged
	// items before asking for new ones.
	replayPending bool
}

func New[T any](consumer Consumer, handler Handler[T], cfg Config, opts ...Option) *Worker[T] {
	return &Worker[T]{
		loop:          newLoop(cfg, buildOptions(opts)),
		consumer:      consumer,
		handler:       handler,
		replayPending: true,
	}
}

// Run blocks until ctx is cancelled or Stop is called. The batch in flight at
// that moment is written and acknowledged before Run returns.
func (w *Worker[T]) Run(ctx context.Context) error {
	w.run(w.logContext(ctx), w.cycle)
	return nil
}

func (w *Worker[T]) cycle(ctx context.Context) error {
	w.setState(StateReading)

	var (
		items []queue.WorkItem
		err   error
	)
	if w.replayPending {
		items, err = w.consumer.ReadPending(ctx, w.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			w.replayPending = false
		} else {
			slog.InfoContext(ctx, "replaying unacknowledged items", "count", len(items))
		}
	}
	if len(items) == 0 {
		items, err = w.consumer.Read(ctx, w.cfg.BatchSize, w.cfg.Block)
		if err != nil {
			return err
		}
	}
	if len(items) == 0 {
		return nil
	}

	if err := w.ProcessBatch(context.WithoutCancel(ctx), w.consumer, items); err != nil {
		w.replayPending = true
		return err
	}
	return nil
}

// ProcessBatch decodes, writes and settles items through consumer.
func (w *Worker[T]) ProcessBatch(ctx context.Context, consumer Consumer, items []queue.WorkItem) error {
	start := w.clock.Now()
	w.metrics.read(w.cfg.Stream, len(items))

	sc := logger.StartBatchSpan(ctx, w.cfg.Stream, w.cfg.Group, len(items))
	defer sc.End()
	ctx = sc.Context()

	w.setState(StateDecoding)
	decoded, rejected := decodeAll(ctx, items, w.handler.Decode)

	w.setState(StateWriting)
	var (
		res Result
		err error
	)
	if len(decoded) > 0 {
		res, err = writeIsolating(ctx, decoded, w.handler.Write)
	}
	rejected = append(rejected, res.Rejected...)

	if settleErr := w.settle(ctx, consumer, items, rejected, err == nil); settleErr != nil && err == nil {
		err = settleErr
	}
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("processing batch of %d: %w", len(items), err)
	}

	w.metrics.observe(w.cfg.Stream, w.clock.Since(start))
	slog.DebugContext(ctx, "batch processed",
		"items", len(items),
		"written", res.Written,
		"rejected", len(rejected),
		"duration_ms", w.clock.Since(start).Milliseconds())
	return nil
}

// writeIsolating writes the batch and, when the database rejects it outright,
// retries item by item so one bad row is dead-lettered instead of blocking
// its siblings forever.
func writeIsolating[T any](ctx context.Context, batch []Decoded[T], write func(context.Context, []Decoded[T]) (Result, error)) (Result, error) {
	res, err := write(ctx, batch)
	if err == nil || !store.IsPermanent(err) {
		return res, err
	}
	if len(batch) == 1 {
		slog.WarnContext(ctx, "work item rejected by the database", "message_id", batch[0].Item.ID, "error", err)
		return Result{Rejected: []Rejection{{Item: batch[0].Item, Err: err}}}, nil
	}

	slog.WarnContext(ctx, "batch rejected by the database, writing items one at a time",
		"items", len(batch), "error", err)

	var out Result
	for _, entry := range batch {
		r, err := writeIsolating(ctx, []Decoded[T]{entry}, write)
		out.Written += r.Written
		out.Rejected = append(out.Rejected, r.Rejected...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
