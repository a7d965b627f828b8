package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
)

// GroupSpec names a consumer group to create at start-up.
type GroupSpec struct {
	Stream string
	Group  string
}

// EnsureGroups creates every group, retrying transport failures with
// exponential backoff until maxElapsed has passed.
func EnsureGroups(ctx context.Context, client *redis.Client, groups []GroupSpec, maxElapsed time.Duration) error {
	for _, g := range groups {
		op := func() (struct{}, error) {
			return struct{}{}, ensureGroup(ctx, client, g.Stream, g.Group)
		}
		notify := func(err error, next time.Duration) {
			slog.WarnContext(ctx, "consumer group bootstrap failed, retrying",
				"error", err, "stream", g.Stream, "group", g.Group, "retry_in", next)
		}

		if _, err := backoff.Retry(ctx, op,
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxElapsedTime(maxElapsed),
			backoff.WithNotify(notify),
		); err != nil {
			return fmt.Errorf("bootstrapping group %s on %s: %w", g.Group, g.Stream, err)
		}

		slog.InfoContext(ctx, "consumer group ready", "stream", g.Stream, "group", g.Group)
	}
	return nil
}
