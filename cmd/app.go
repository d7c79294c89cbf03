package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"draw_queue/internal/config"
	"draw_queue/internal/presence"
	"draw_queue/internal/queue"
	"draw_queue/internal/storage"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
)

// app wires the pieces shared by serve and reap.
type app struct {
	store  storage.Store
	hub    *presence.Hub
	rdb    *redis.Client
	bus    *presence.RedisBus
	engine *queue.Engine
}

func newApp(ctx context.Context, c *config.Config) (*app, error) {
	store, err := storage.Open(ctx, c.DB)
	if err != nil {
		return nil, err
	}
	a := &app{
		store: store,
		hub:   presence.NewHub(c.Presence.BufferSize),
	}

	var pub presence.Publisher = a.hub
	if c.Presence.Fanout == presence.FanoutRedis {
		a.rdb, err = storage.InitRedis(ctx, c.Redis)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.bus = presence.NewRedisBus(a.rdb, a.hub)
		pub = a.bus
	}

	a.engine = queue.NewEngine(c.Queue, store, pub)
	slog.Default().InfoContext(ctx, "queue engine ready",
		slog.String("storage", c.DB.Driver),
		slog.String("fanout", c.Presence.Fanout),
		slog.Int("max_concurrent_active", a.engine.Config().MaxConcurrentActive),
		slog.Duration("active_slot_ttl", a.engine.Config().ActiveSlotTTL),
		slog.Duration("waiting_idle_ttl", a.engine.Config().WaitingIdleTTL),
	)
	return a, nil
}

// run drives the hub and, with redis fan-out, the bus until ctx is done.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.hub.Run(ctx)
		return nil
	})
	if a.bus != nil {
		g.Go(func() error {
			if err := a.bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("presence bus stopped: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if err := a.store.Close(); err != nil {
		slog.Default().Warn("can't close entry store", slog.String("err", err.Error()))
	}
}
