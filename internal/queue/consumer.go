package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"minicrm.app/pipeline/common/logger"
)

type ConsumerConfig struct {
	Stream    string        // Redis stream name
	Group     string        // Redis consumer group name
	Consumer  string        // Redis consumer name, unique per worker loop
	DLQStream string        // Dead letter stream for poison items
	BatchSize int64         // Max items per read
	Block     time.Duration // How long a read waits for new items
}

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) *RedisConsumer {
	if cfg.DLQStream == "" {
		cfg.DLQStream = cfg.Stream + "_dlq"
	}
	return &RedisConsumer{client: client, cfg: cfg}
}

func (c *RedisConsumer) Config() ConsumerConfig {
	return c.cfg
}

// EnsureGroup creates the consumer group (and the stream) if missing.
func (c *RedisConsumer) EnsureGroup(ctx context.Context) error {
	return ensureGroup(ctx, c.client, c.cfg.Stream, c.cfg.Group)
}

func ensureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	// Start from "0" so a recreated group sees everything already in the stream.
	if err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err(); err != nil && !isBusyGroup(err) {
		return transportErr("creating consumer group", stream, err)
	}
	return nil
}

// Read returns up to count items never delivered to any consumer of the group,
// waiting at most block for the first one. A read that times out returns an
// empty slice. A non-positive block uses the configured default.
func (c *RedisConsumer) Read(ctx context.Context, count int64, block time.Duration) ([]WorkItem, error) {
	if block <= 0 {
		block = c.cfg.Block
	}
	if block < time.Millisecond {
		// 0 blocks forever in Redis.
		block = time.Millisecond
	}
	return c.read(ctx, ">", count, block)
}

// ReadPending returns this consumer's delivered but unacknowledged items.
func (c *RedisConsumer) ReadPending(ctx context.Context, count int64) ([]WorkItem, error) {
	// Reading history never blocks; -1 omits BLOCK.
	return c.read(ctx, "0", count, -1)
}

func (c *RedisConsumer) read(ctx context.Context, start string, count int64, block time.Duration) ([]WorkItem, error) {
	if count <= 0 {
		count = c.cfg.BatchSize
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, start},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []WorkItem{}, nil
		}
		return nil, transportErr("reading from stream", c.cfg.Stream, err)
	}

	items := []WorkItem{}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			// Pending entries deleted from the stream come back with no values.
			if msg.Values == nil && start == "0" {
				slog.WarnContext(ctx, "pending entry no longer in stream, acknowledging",
					"message_id", msg.ID, "stream", c.cfg.Stream)
				_ = c.Ack(ctx, msg.ID)
				continue
			}
			items = append(items, toWorkItem(c.cfg.Stream, msg))
		}
	}

	if len(items) > 0 {
		slog.DebugContext(ctx, "read items from stream",
			"count", len(items),
			"pending", start == "0",
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}
	return items, nil
}

// Ack acknowledges a whole batch in one round trip.
func (c *RedisConsumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, ids...).Err(); err != nil {
		return transportErr("xack", c.cfg.Stream, err)
	}
	slog.DebugContext(ctx, "items acknowledged", "count", len(ids), "stream", c.cfg.Stream)
	return nil
}

// DeadLetter copies the item to the dead letter stream and acknowledges it.
func (c *RedisConsumer) DeadLetter(ctx context.Context, item WorkItem, reason string) error {
	values := toValues(item.Fields)
	values["source_stream"] = c.cfg.Stream
	values["source_id"] = item.ID
	values["error"] = reason

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return transportErr("xadd dlq", c.cfg.DLQStream, err)
	}

	if err := c.Ack(ctx, item.ID); err != nil {
		return err
	}

	slog.WarnContext(ctx, "item sent to dead letter stream",
		"message_id", item.ID,
		"reason", logger.Truncate(reason, 200),
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

// Claim takes over up to count entries idle for at least minIdle from any
// consumer in the group, this one included.
func (c *RedisConsumer) Claim(ctx context.Context, minIdle time.Duration, count int64) ([]ClaimedItem, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, transportErr("xpending", c.cfg.Stream, err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(pending))
	deliveries := make(map[string]int64, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
		// XCLAIM bumps the counter once more.
		deliveries[p.ID] = p.RetryCount + 1
	}

	messages, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, transportErr("xclaim", c.cfg.Stream, err)
	}

	claimed := make([]ClaimedItem, 0, len(messages))
	for _, msg := range messages {
		if msg.Values == nil {
			_ = c.Ack(ctx, msg.ID)
			continue
		}
		claimed = append(claimed, ClaimedItem{
			WorkItem:   toWorkItem(c.cfg.Stream, msg),
			Deliveries: deliveries[msg.ID],
		})
	}
	return claimed, nil
}
