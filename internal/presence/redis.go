package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-redis/redis/v8"
)

const channelPrefix = "drawqueue:events:"

// RedisBus is the Publisher for multi-process deployments. Publish only writes to
// redis; every process (the publishing one included) runs Run, which feeds the events
// of all products into its local hub.
type RedisBus struct {
	rdb   *redis.Client
	local *Hub
}

func NewRedisBus(rdb *redis.Client, local *Hub) *RedisBus {
	return &RedisBus{rdb: rdb, local: local}
}

func channelFor(productID string) string {
	return channelPrefix + productID
}

// Publish implements Publisher. When redis is unreachable the event still reaches the
// connections of this process.
func (b *RedisBus) Publish(ctx context.Context, productID string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Default().ErrorContext(ctx, "can't encode presence event",
			slog.String("product_id", productID),
			slog.String("err", err.Error()),
		)
		return
	}
	if err := b.rdb.Publish(ctx, channelFor(productID), payload).Err(); err != nil {
		slog.Default().WarnContext(ctx, "redis publish failed, delivering locally only",
			slog.String("product_id", productID),
			slog.String("err", err.Error()),
		)
		b.local.Publish(ctx, productID, ev)
	}
}

// Run relays events published by any process into the local hub until ctx is done.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	slog.Default().InfoContext(ctx, "presence fan-out subscribed to redis",
		slog.String("pattern", channelPrefix+"*"),
	)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Default().WarnContext(ctx, "skipping malformed presence event",
					slog.String("channel", msg.Channel),
					slog.String("err", err.Error()),
				)
				continue
			}
			productID := strings.TrimPrefix(msg.Channel, channelPrefix)
			b.local.Publish(ctx, productID, ev)
		}
	}
}
