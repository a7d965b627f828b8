package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"minicrm.app/pipeline/common/logger"
	"minicrm.app/pipeline/internal/codec"
	"minicrm.app/pipeline/internal/model"
	"minicrm.app/pipeline/internal/queue"
)

type AggregatorConfig struct {
	MaxBatchSize int
	MaxWait      time.Duration
	// FlushTimeout bounds the final flush on shutdown.
	FlushTimeout time.Duration
}

// LogAggregator collects log_update items until the batch is full or MaxWait
// has passed since the last flush, then applies the whole batch in one
// transaction: log statuses, campaign counters, campaign completion.
type LogAggregator struct {
	*loop
	consumer Consumer
	txRunner TxRunner
	batcher  *Batcher[Decoded[codec.StatusUpdate]]
	aggCfg   AggregatorConfig

	// replayPending makes the next read fetch this consumer's unacknowledged
	// items instead of new ones. Replayed items stay pending until their batch
	// is flushed, so another page is only requested after a full page flushes.
	replayPending bool
	morePending   bool
}

func NewLogAggregator(consumer Consumer, txRunner TxRunner, cfg Config, aggCfg AggregatorConfig, opts ...Option) *LogAggregator {
	if aggCfg.MaxBatchSize <= 0 {
		aggCfg.MaxBatchSize = 100
	}
	if aggCfg.MaxWait <= 0 {
		aggCfg.MaxWait = 5 * time.Second
	}
	if aggCfg.FlushTimeout <= 0 {
		aggCfg.FlushTimeout = 10 * time.Second
	}
	o := buildOptions(opts)
	return &LogAggregator{
		loop:     newLoop(cfg, o),
		consumer: consumer,
		txRunner: txRunner,
		batcher:  NewBatcher[Decoded[codec.StatusUpdate]](o.clock, aggCfg.MaxBatchSize, aggCfg.MaxWait),
		aggCfg:   aggCfg,

		replayPending: true,
	}
}

// Run blocks until ctx is cancelled or Stop is called, then flushes whatever
// the batch still holds.
func (a *LogAggregator) Run(ctx context.Context) error {
	ctx = a.logContext(ctx)
	a.run(ctx, a.cycle)

	if a.batcher.Len() == 0 {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.aggCfg.FlushTimeout)
	defer cancel()
	if err := a.flush(flushCtx); err != nil {
		slog.ErrorContext(ctx, "final flush failed, items stay pending for redelivery", "error", err)
	}
	return nil
}

func (a *LogAggregator) Batcher() *Batcher[Decoded[codec.StatusUpdate]] {
	return a.batcher
}

func (a *LogAggregator) cycle(ctx context.Context) error {
	if a.batcher.Ready() {
		return a.flush(context.WithoutCancel(ctx))
	}

	a.setState(StateReading)
	items, err := a.readPending(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		block := min(a.cfg.Block, a.batcher.Until())
		if block < time.Millisecond {
			block = time.Millisecond
		}
		items, err = a.consumer.Read(ctx, int64(a.batcher.Remaining()), block)
		if err != nil {
			return err
		}
	}

	if len(items) > 0 {
		a.metrics.read(a.cfg.Stream, len(items))
		a.setState(StateDecoding)
		decoded, rejected := decodeAll(ctx, items, codec.DecodeStatusUpdate)
		a.batcher.Add(decoded...)
		if err := a.settle(context.WithoutCancel(ctx), a.consumer, nil, rejected, false); err != nil {
			return err
		}
	}

	if a.batcher.Ready() {
		return a.flush(context.WithoutCancel(ctx))
	}
	return nil
}

func (a *LogAggregator) readPending(ctx context.Context) ([]queue.WorkItem, error) {
	if !a.replayPending {
		return nil, nil
	}
	limit := a.batcher.Remaining()
	items, err := a.consumer.ReadPending(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	a.replayPending = false
	a.morePending = limit > 0 && len(items) == limit
	if len(items) > 0 {
		slog.InfoContext(ctx, "replaying unacknowledged items", "count", len(items))
	}
	return items, nil
}

// flush writes the held batch. On failure the batch is kept and stays ready,
// so the next cycle retries it after backoff.
func (a *LogAggregator) flush(ctx context.Context) error {
	entries := a.batcher.Begin()
	if len(entries) == 0 {
		a.batcher.Commit()
		return nil
	}

	if err := a.apply(ctx, a.consumer, entries); err != nil {
		a.batcher.Abort()
		return err
	}
	a.batcher.Commit()
	if a.morePending {
		a.replayPending, a.morePending = true, false
	}
	return nil
}

// ProcessBatch applies reclaimed log_update items directly, bypassing the batcher.
func (a *LogAggregator) ProcessBatch(ctx context.Context, consumer Consumer, items []queue.WorkItem) error {
	a.metrics.read(a.cfg.Stream, len(items))
	decoded, rejected := decodeAll(ctx, items, codec.DecodeStatusUpdate)
	if err := a.settle(ctx, consumer, nil, rejected, false); err != nil {
		return err
	}
	if len(decoded) == 0 {
		return nil
	}
	return a.apply(ctx, consumer, decoded)
}

func (a *LogAggregator) apply(ctx context.Context, consumer Consumer, entries []Decoded[codec.StatusUpdate]) error {
	start := a.clock.Now()

	sc := logger.StartBatchSpan(ctx, a.cfg.Stream, a.cfg.Group, len(entries))
	defer sc.End()
	ctx = sc.Context()

	a.setState(StateWriting)
	res, err := writeIsolating(ctx, entries, a.write)

	items := itemsOf(entries)
	if settleErr := a.settle(ctx, consumer, items, res.Rejected, err == nil); settleErr != nil {
		if err == nil {
			// Committed but not acknowledged: redelivery finds the logs
			// already terminal and changes nothing.
			slog.WarnContext(ctx, "delivery updates committed but not acknowledged", "error", settleErr)
			return nil
		}
	}
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("flushing %d delivery updates: %w", len(entries), err)
	}

	a.metrics.observe(a.cfg.Stream, a.clock.Since(start))
	return nil
}

// write runs one flush transaction and logs each campaign it completes.
func (a *LogAggregator) write(ctx context.Context, entries []Decoded[codec.StatusUpdate]) (Result, error) {
	changes := DedupeStatusChanges(entries)

	var summary FlushSummary
	err := a.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		var err error
		summary, err = ApplyStatusChanges(ctx, sp, changes)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	for _, campaignID := range summary.Completed {
		slog.InfoContext(logger.WithLogFields(ctx, logger.LogFields{CampaignID: logger.Ptr(campaignID)}),
			"campaign completed")
	}
	a.metrics.completed(len(summary.Completed))

	slog.InfoContext(ctx, "delivery updates flushed",
		"items", len(entries),
		"applied", summary.Applied,
		"duplicates", len(changes)-summary.Applied,
		"campaigns", summary.Campaigns,
		"completed", len(summary.Completed))

	return Result{Written: summary.Applied}, nil
}

// DedupeStatusChanges keeps one change per (campaign, customer), the last in
// stream order.
func DedupeStatusChanges(entries []Decoded[codec.StatusUpdate]) []model.StatusChange {
	index := make(map[model.LogKey]int, len(entries))
	out := make([]model.StatusChange, 0, len(entries))
	for _, entry := range entries {
		change := entry.Value.Change()
		if i, ok := index[change.Key()]; ok {
			out[i] = change
			continue
		}
		index[change.Key()] = len(out)
		out = append(out, change)
	}
	return out
}

type FlushSummary struct {
	Completed []int64
	Applied   int
	Campaigns int
}

// ApplyStatusChanges moves pending logs to their outcome, increments each
// touched campaign once by what actually changed, and completes campaigns
// whose counters now cover their audience. Changes for logs that are no longer
// pending count nothing, so a redelivered batch cannot inflate counters.
func ApplyStatusChanges(ctx context.Context, sp StoreProvider, changes []model.StatusChange) (FlushSummary, error) {
	var summary FlushSummary

	applied, err := sp.CommunicationLogs().ApplyStatuses(ctx, changes)
	if err != nil {
		return summary, fmt.Errorf("updating delivery statuses: %w", err)
	}
	summary.Applied = len(applied)
	if len(applied) == 0 {
		return summary, nil
	}

	deltas := TallyDeliveries(applied)
	summary.Campaigns = len(deltas)

	progress, err := sp.Campaigns().IncrementDeliveryStats(ctx, deltas)
	if err != nil {
		return summary, fmt.Errorf("incrementing campaign stats: %w", err)
	}

	var candidates []int64
	for _, p := range progress {
		if p.Status != model.CampaignStatusCompleted && p.DeliveryStats.Total() >= p.AudienceSize {
			candidates = append(candidates, p.CampaignID)
		}
	}
	if len(candidates) == 0 {
		return summary, nil
	}

	summary.Completed, err = sp.Campaigns().Complete(ctx, candidates)
	if err != nil {
		return summary, fmt.Errorf("completing campaigns: %w", err)
	}
	return summary, nil
}

// TallyDeliveries counts sent and failed outcomes per campaign, in order of
// first appearance.
func TallyDeliveries(changes []model.StatusChange) []model.CampaignDelta {
	index := make(map[int64]int)
	var out []model.CampaignDelta
	for _, c := range changes {
		i, ok := index[c.CampaignID]
		if !ok {
			index[c.CampaignID] = len(out)
			out = append(out, model.CampaignDelta{CampaignID: c.CampaignID})
			i = len(out) - 1
		}
		switch c.Status {
		case model.DeliveryStatusSent:
			out[i].Sent++
		case model.DeliveryStatusFailed:
			out[i].Failed++
		}
	}
	return out
}
