package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"draw_queue/internal/metrics"
	"draw_queue/internal/storage"

	"golang.org/x/sync/errgroup"
)

// SweepResult summarises one reaper pass.
type SweepResult struct {
	Products       int
	ExpiredActive  int
	ExpiredWaiting int
	Promoted       int
}

func (r SweepResult) Expired() int { return r.ExpiredActive + r.ExpiredWaiting }

// Reaper removes entries whose deadline has passed and hands freed slots to the next
// waiters. A product is swept as one transition and announced with a single event no
// matter how many of its entries expired.
type Reaper struct {
	engine *Engine
}

func NewReaper(engine *Engine) *Reaper {
	return &Reaper{engine: engine}
}

// Sweep runs one pass over every product holding an expired entry. Products are swept
// concurrently; a failing product does not stop the others and its error is returned
// joined with the rest.
func (r *Reaper) Sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	defer func() { metrics.ReapDuration.Observe(time.Since(start).Seconds()) }()

	e := r.engine
	products, err := e.store.ExpiredProducts(ctx, e.now())
	if err != nil {
		return SweepResult{}, fmt.Errorf("can't list expired products: %w", err)
	}

	var (
		mu     sync.Mutex
		result SweepResult
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.c.ReapParallelism)
	for _, productID := range products {
		g.Go(func() error {
			s, err := r.sweepProduct(gctx, productID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("product %s: %w", productID, err))
				return nil
			}
			if s == nil {
				return nil
			}
			result.Products++
			result.Promoted += len(s.promoted)
			for _, x := range s.expired {
				if x.IsActive() {
					result.ExpiredActive++
				} else {
					result.ExpiredWaiting++
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if result.Products > 0 {
		slog.Default().InfoContext(ctx, "reaper sweep finished",
			slog.Int("products", result.Products),
			slog.Int("expired_active", result.ExpiredActive),
			slog.Int("expired_waiting", result.ExpiredWaiting),
			slog.Int("promoted", result.Promoted),
			slog.Duration("took", time.Since(start)),
		)
	}
	return result, errors.Join(errs...)
}

// sweepProduct expires productID's overdue entries. It returns nil when another
// transition already cleaned them up.
func (r *Reaper) sweepProduct(ctx context.Context, productID string) (*settlement, error) {
	e := r.engine
	var s *settlement
	err := e.atomically(ctx, productID, func(tx storage.Tx) error {
		s = nil

		now := e.now()
		expired, err := tx.Expired(productID, now)
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		for i := range expired {
			if err := tx.Delete(&expired[i]); err != nil {
				return err
			}
		}
		if s, err = e.settle(tx, productID, now); err != nil {
			return err
		}
		s.expired = append(expired, s.expired...)
		return nil
	})
	if err != nil || s == nil {
		return nil, err
	}

	e.reportExpired(ctx, productID, s)
	e.publish(ctx, productID, s, "expired")
	return s, nil
}
