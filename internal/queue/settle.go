package queue

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"draw_queue/internal/metrics"
	"draw_queue/internal/models"
	"draw_queue/internal/presence"
	"draw_queue/internal/storage"
)

// settlement is the state of a product queue right after a transition committed.
type settlement struct {
	active   []models.QueueEntry
	waiting  []models.QueueEntry
	promoted []models.QueueEntry
	expired  []models.QueueEntry
}

func partition(entries []models.QueueEntry) (active, waiting []models.QueueEntry) {
	for _, e := range entries {
		if e.IsActive() {
			active = append(active, e)
		} else {
			waiting = append(waiting, e)
		}
	}
	return active, waiting
}

func lastPosition(waiting []models.QueueEntry) int {
	last := 0
	for _, e := range waiting {
		last = max(last, e.Position)
	}
	return last
}

// settle drops waiters whose deadline has passed, fills free active slots from the head
// of the waiting line and renumbers the rest 1..N. It must run inside the product lock
// after every removal or insertion.
func (e *Engine) settle(tx storage.Tx, productID string, now time.Time) (*settlement, error) {
	entries, err := tx.List(productID)
	if err != nil {
		return nil, err
	}
	active, waiting := partition(entries)
	slices.SortStableFunc(waiting, func(a, b models.QueueEntry) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	s := &settlement{active: active}
	live := waiting[:0]
	for _, w := range waiting {
		if !w.ExpiredAt(now) {
			live = append(live, w)
			continue
		}
		if err := tx.Delete(&w); err != nil {
			return nil, err
		}
		s.expired = append(s.expired, w)
	}
	waiting = live

	for len(s.active) < e.c.MaxConcurrentActive && len(waiting) > 0 {
		next := waiting[0]
		waiting = waiting[1:]

		next.Status = models.StatusActive
		next.Position = 0
		next.ExpiresAt = now.Add(e.c.ActiveSlotTTL)
		next.UpdatedAt = now
		if err := tx.Save(&next); err != nil {
			return nil, err
		}
		s.active = append(s.active, next)
		s.promoted = append(s.promoted, next)
	}

	for i := range waiting {
		if waiting[i].Position == i+1 {
			continue
		}
		waiting[i].Position = i + 1
		waiting[i].UpdatedAt = now
		if err := tx.Save(&waiting[i]); err != nil {
			return nil, err
		}
	}
	s.waiting = waiting

	if n := len(s.promoted); n > 0 {
		metrics.Promotions.Add(float64(n))
	}
	return s, nil
}

// reportExpired counts and logs the entries a transition expired.
func (e *Engine) reportExpired(ctx context.Context, productID string, s *settlement) {
	if s == nil {
		return
	}
	for _, x := range s.expired {
		metrics.Reaped.WithLabelValues(string(x.Status)).Inc()
		slog.Default().DebugContext(ctx, "queue entry expired",
			slog.String("product_id", productID),
			slog.String("user_id", x.UserID),
			slog.String("status", string(x.Status)),
		)
	}
}

// find returns userID's entry as settled, or fallback when it is not part of the queue.
func (s *settlement) find(userID string, fallback models.QueueEntry) models.QueueEntry {
	for _, list := range [][]models.QueueEntry{s.active, s.waiting} {
		for _, e := range list {
			if e.UserID == userID {
				return e
			}
		}
	}
	return fallback
}

func (s *settlement) event(productID, reason string, at time.Time) presence.Event {
	roster := &presence.Roster{
		Active:  make([]string, 0, len(s.active)),
		Waiting: make([]string, 0, len(s.waiting)),
	}
	for _, e := range s.active {
		roster.Active = append(roster.Active, e.UserID)
	}
	for _, e := range s.waiting {
		roster.Waiting = append(roster.Waiting, e.UserID)
	}
	for _, e := range s.promoted {
		roster.Promoted = append(roster.Promoted, e.UserID)
	}
	return presence.Event{
		Type:        presence.EventQueueUpdate,
		ProductID:   productID,
		QueueLength: len(s.active) + len(s.waiting),
		ActiveCount: len(s.active),
		Reason:      reason,
		At:          at,
		Roster:      roster,
	}
}
