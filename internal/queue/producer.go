package queue

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"minicrm.app/pipeline/internal/codec"
)

type Producer interface {
	// Publish appends every record to stream in order and returns their ids.
	Publish(ctx context.Context, stream string, records ...codec.Fields) ([]string, error)
}

type RedisProducer struct {
	client *redis.Client
	maxLen int64
}

// NewRedisProducer returns a producer. maxLen > 0 trims each stream to roughly
// that many entries on every append.
func NewRedisProducer(client *redis.Client, maxLen int64) *RedisProducer {
	return &RedisProducer{client: client, maxLen: maxLen}
}

func (p *RedisProducer) Publish(ctx context.Context, stream string, records ...codec.Fields) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	pipe := p.client.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(records))
	for _, fields := range records {
		args := &redis.XAddArgs{
			Stream: stream,
			Values: toValues(fields),
		}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}
		cmds = append(cmds, pipe.XAdd(ctx, args))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, transportErr("xadd", stream, err)
	}

	ids := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		ids = append(ids, cmd.Val())
	}

	slog.DebugContext(ctx, "published work items", "stream", stream, "count", len(ids))
	return ids, nil
}
