package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"draw_queue/internal/metrics"
	"draw_queue/internal/models"
	"draw_queue/internal/presence"
	"draw_queue/internal/storage"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

var (
	ErrNotInQueue     = errors.New("queue: user is not in the queue")
	ErrMissingProduct = errors.New("queue: product id is required")
	ErrMissingUser    = errors.New("queue: user id is required")
	// ErrBusy means the product stayed contended for every retry attempt.
	ErrBusy = errors.New("queue: product queue is busy, try again")
)

// Config holds the admission limits and timings. The values are process-wide.
type Config struct {
	MaxConcurrentActive int           `mapstructure:"max_concurrent_active"`
	ActiveSlotTTL       time.Duration `mapstructure:"active_slot_ttl"`
	WaitingIdleTTL      time.Duration `mapstructure:"waiting_idle_ttl"`
	ReapInterval        time.Duration `mapstructure:"reap_interval"` // 0 derives it from the TTLs
	ReapParallelism     int           `mapstructure:"reap_parallelism"`
	ReaperEnabled       bool          `mapstructure:"reaper_enabled"`
	MaxRetries          int           `mapstructure:"max_retries"`
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentActive: 1,
		ActiveSlotTTL:       2 * time.Minute,
		WaitingIdleTTL:      time.Minute,
		ReapParallelism:     4,
		ReaperEnabled:       true,
		MaxRetries:          5,
	}
}

// ReapEvery is the sweep interval: ReapInterval when set, otherwise a quarter of the
// shorter TTL, never below one second.
func (c Config) ReapEvery() time.Duration {
	if c.ReapInterval > 0 {
		return c.ReapInterval
	}
	every := min(c.ActiveSlotTTL, c.WaitingIdleTTL) / 4
	if every < time.Second {
		every = time.Second
	}
	return every
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxConcurrentActive <= 0 {
		c.MaxConcurrentActive = d.MaxConcurrentActive
	}
	if c.ActiveSlotTTL <= 0 {
		c.ActiveSlotTTL = d.ActiveSlotTTL
	}
	if c.WaitingIdleTTL <= 0 {
		c.WaitingIdleTTL = d.WaitingIdleTTL
	}
	if c.ReapParallelism <= 0 {
		c.ReapParallelism = d.ReapParallelism
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	return c
}

// Status is a user's view of one product queue.
type Status struct {
	InQueue   bool
	Status    models.EntryStatus
	Position  int
	ExpiresAt time.Time
}

// Engine is the admission state machine. Every transition runs inside the store's
// per-product lock; reads go straight to the store.
type Engine struct {
	store storage.Store
	pub   presence.Publisher
	c     Config
	now   func() time.Time
	retry func() backoff.BackOff
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithBackOff replaces the retry policy used for conflicting transitions.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(e *Engine) { e.retry = newBackOff }
}

func NewEngine(c Config, store storage.Store, pub presence.Publisher, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		pub:   pub,
		c:     c.withDefaults(),
		now:   time.Now,
		retry: defaultBackOff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	return b
}

func (e *Engine) Config() Config { return e.c }

func validate(productID, userID string) error {
	if productID == "" {
		return ErrMissingProduct
	}
	if userID == "" {
		return ErrMissingUser
	}
	return nil
}

// Join admits the user immediately when a slot is free and nobody is waiting, and
// otherwise appends them to the waiting line. A user who already holds a live entry gets
// it back unchanged. An entry whose deadline has passed is replaced by a fresh one.
func (e *Engine) Join(ctx context.Context, productID, userID string) (*models.QueueEntry, error) {
	if err := validate(productID, userID); err != nil {
		return nil, err
	}

	var (
		joined   models.QueueEntry
		existing bool
		s        *settlement
	)
	err := e.atomically(ctx, productID, func(tx storage.Tx) error {
		existing, s = false, nil

		now := e.now()
		var stale *models.QueueEntry
		found, err := tx.Find(productID, userID)
		switch {
		case err == nil && !found.ExpiredAt(now):
			joined, existing = *found, true
			return nil
		case err == nil:
			if err := tx.Delete(found); err != nil {
				return err
			}
			stale = found
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		entries, err := tx.List(productID)
		if err != nil {
			return err
		}
		active, waiting := partition(entries)

		entry := models.QueueEntry{
			ID:        uuid.NewString(),
			ProductID: productID,
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if len(active) < e.c.MaxConcurrentActive && len(waiting) == 0 {
			entry.Status = models.StatusActive
			entry.ExpiresAt = now.Add(e.c.ActiveSlotTTL)
		} else {
			entry.Status = models.StatusWaiting
			entry.Position = lastPosition(waiting) + 1
			entry.ExpiresAt = now.Add(e.c.WaitingIdleTTL)
		}
		if err := tx.Create(&entry); err != nil {
			return err
		}

		if s, err = e.settle(tx, productID, now); err != nil {
			return err
		}
		if stale != nil {
			s.expired = append(s.expired, *stale)
		}
		joined = s.find(userID, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if existing {
		metrics.Joins.WithLabelValues("existing").Inc()
		return &joined, nil
	}
	metrics.Joins.WithLabelValues(string(joined.Status)).Inc()
	e.reportExpired(ctx, productID, s)
	slog.Default().DebugContext(ctx, "queue joined",
		slog.String("product_id", productID),
		slog.String("user_id", userID),
		slog.String("status", string(joined.Status)),
		slog.Int("position", joined.Position),
	)
	e.publish(ctx, productID, s, "join")
	return &joined, nil
}

// Heartbeat pushes the caller's deadline forward by the TTL of its current status. An
// entry whose deadline has already passed is expired on the spot instead of revived.
func (e *Engine) Heartbeat(ctx context.Context, productID, userID string) (*models.QueueEntry, error) {
	if err := validate(productID, userID); err != nil {
		return nil, err
	}

	var (
		refreshed models.QueueEntry
		expired   bool
		s         *settlement
	)
	err := e.atomically(ctx, productID, func(tx storage.Tx) error {
		expired, s = false, nil

		entry, err := tx.Find(productID, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotInQueue
		}
		if err != nil {
			return err
		}

		now := e.now()
		if entry.ExpiredAt(now) {
			if err := tx.Delete(entry); err != nil {
				return err
			}
			expired = true
			s, err = e.settle(tx, productID, now)
			if s != nil {
				s.expired = append(s.expired, *entry)
			}
			return err
		}

		ttl := e.c.WaitingIdleTTL
		if entry.IsActive() {
			ttl = e.c.ActiveSlotTTL
		}
		entry.ExpiresAt = now.Add(ttl)
		entry.UpdatedAt = now
		if err := tx.Save(entry); err != nil {
			return err
		}
		refreshed = *entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		e.reportExpired(ctx, productID, s)
		e.publish(ctx, productID, s, "expired")
		return nil, ErrNotInQueue
	}
	return &refreshed, nil
}

// Leave removes the caller's entry. Calling it without an entry is not an error.
func (e *Engine) Leave(ctx context.Context, productID, userID string) error {
	if err := validate(productID, userID); err != nil {
		return err
	}

	var (
		removed *models.QueueEntry
		s       *settlement
	)
	err := e.atomically(ctx, productID, func(tx storage.Tx) error {
		removed, s = nil, nil

		entry, err := tx.Find(productID, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(entry); err != nil {
			return err
		}
		removed = entry
		s, err = e.settle(tx, productID, e.now())
		return err
	})
	if err != nil {
		return err
	}
	if removed == nil {
		return nil
	}

	metrics.Leaves.Inc()
	e.reportExpired(ctx, productID, s)
	slog.Default().DebugContext(ctx, "queue left",
		slog.String("product_id", productID),
		slog.String("user_id", userID),
		slog.String("status", string(removed.Status)),
	)
	e.publish(ctx, productID, s, "leave")
	return nil
}

// Status reports the user's current entry as stored.
func (e *Engine) Status(ctx context.Context, productID, userID string) (Status, error) {
	if err := validate(productID, userID); err != nil {
		return Status{}, err
	}
	entry, err := e.store.Get(ctx, productID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{
		InQueue:   true,
		Status:    entry.Status,
		Position:  entry.Position,
		ExpiresAt: entry.ExpiresAt,
	}, nil
}

// Count returns how many users are waiting or active on productID.
func (e *Engine) Count(ctx context.Context, productID string) (int64, error) {
	if productID == "" {
		return 0, ErrMissingProduct
	}
	return e.store.Count(ctx, productID)
}

// CountBatch counts several products in one storage round-trip. Blank and duplicate
// ids are ignored.
func (e *Engine) CountBatch(ctx context.Context, productIDs []string) (map[string]int64, error) {
	seen := make(map[string]bool, len(productIDs))
	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ErrMissingProduct
	}
	return e.store.CountBatch(ctx, ids)
}

// atomically runs fn under the product lock and retries it while it keeps losing races
// with other transitions of the same product.
func (e *Engine) atomically(ctx context.Context, productID string, fn func(tx storage.Tx) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := e.store.Atomically(ctx, productID, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, storage.ErrConflict) {
			metrics.ConflictRetries.Inc()
			slog.Default().DebugContext(ctx, "queue transition conflicted",
				slog.String("product_id", productID),
				slog.Int("attempt", attempt),
				slog.String("err", err.Error()),
			)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(e.retry()), backoff.WithMaxTries(uint(e.c.MaxRetries)))

	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}

// publish announces a settled transition. It runs after the commit and must not be
// cut short by the caller's request ending.
func (e *Engine) publish(ctx context.Context, productID string, s *settlement, reason string) {
	if s == nil || e.pub == nil {
		return
	}
	e.pub.Publish(context.WithoutCancel(ctx), productID, s.event(productID, reason, e.now()))
}
