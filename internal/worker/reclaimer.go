package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"minicrm.app/pipeline/common/logger"
	"minicrm.app/pipeline/internal/queue"
)

type ReclaimerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	MinIdle       time.Duration
	Interval      time.Duration
	BatchSize     int64
	MaxDeliveries int64 // 0 never dead-letters
}

// Reclaimer periodically claims items left pending by consumers that died
// after XREADGROUP but before XACK, and runs them through the stream's
// processor. Items delivered more than MaxDeliveries times are dead-lettered.
type Reclaimer struct {
	consumer  Consumer
	processor BatchProcessor
	cfg       ReclaimerConfig
	clock     clockwork.Clock
	metrics   *Metrics
	stop      *stopper
}

func NewReclaimer(consumer Consumer, processor BatchProcessor, cfg ReclaimerConfig, opts ...Option) *Reclaimer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	o := buildOptions(opts)
	return &Reclaimer{
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		clock:     o.clock,
		metrics:   o.metrics,
		stop:      newStopper(),
	}
}

// Run starts the reclaimer loop. Blocks until ctx is cancelled or Stop is called.
func (r *Reclaimer) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Stream:    logger.Ptr(r.cfg.Stream),
		Consumer:  logger.Ptr(r.cfg.Consumer),
		Component: "pipeline.worker.reclaimer",
	})

	defer r.stop.begin()()

	ticker := r.clock.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"group", r.cfg.Group)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop.ch:
			slog.InfoContext(ctx, "reclaimer stopping")
			return nil
		case <-ticker.Chan():
			if err := r.ReclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

// Stop signals the reclaimer to stop gracefully.
func (r *Reclaimer) Stop() {
	r.stop.request()
}

// ReclaimOnce performs one reclaim cycle.
func (r *Reclaimer) ReclaimOnce(ctx context.Context) error {
	claimed, err := r.consumer.Claim(ctx, r.cfg.MinIdle, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "claimed stale pending items", "count", len(claimed))

	ctx = context.WithoutCancel(ctx)
	replay := make([]queue.WorkItem, 0, len(claimed))
	for _, c := range claimed {
		if r.cfg.MaxDeliveries > 0 && c.Deliveries > r.cfg.MaxDeliveries {
			reason := &maxDeliveriesError{deliveries: c.Deliveries, limit: r.cfg.MaxDeliveries}
			if err := r.consumer.DeadLetter(ctx, c.WorkItem, reason.Error()); err != nil {
				return fmt.Errorf("dead-lettering %s: %w", c.ID, err)
			}
			r.metrics.deadLettered(r.cfg.Stream, rejectionReason(reason))
			continue
		}
		replay = append(replay, c.WorkItem)
	}

	if len(replay) == 0 {
		return nil
	}
	if err := r.processor.ProcessBatch(ctx, r.consumer, replay); err != nil {
		return fmt.Errorf("processing reclaimed items: %w", err)
	}

	slog.InfoContext(ctx, "reclaimed items processed", "count", len(replay))
	return nil
}
