package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Publisher fans lifecycle events out over Redis pub/sub so dashboards can
// follow payments live.
type Publisher struct {
	rdb goredis.Cmdable
}

func NewPublisher(rdb goredis.Cmdable) *Publisher { return &Publisher{rdb: rdb} }

// Publish returns the number of subscribers that received payload.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	n, err := p.rdb.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", channel, err)
	}
	return n, nil
}
