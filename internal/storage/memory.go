package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"draw_queue/internal/models"
)

// Memory is an Entry Store for single-process deployments and tests. Each product has
// its own writer mutex; a transition works on a private copy of the product's entries
// and publishes it as a new immutable snapshot on success, so readers never block.
type Memory struct {
	mu       sync.RWMutex
	products map[string]*bucket
}

type bucket struct {
	write sync.Mutex
	snap  atomic.Pointer[map[string]models.QueueEntry] // keyed by user id
}

func NewMemory() *Memory {
	return &Memory{products: make(map[string]*bucket)}
}

func (m *Memory) lookup(productID string) *bucket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products[productID]
}

func (m *Memory) bucket(productID string) *bucket {
	if b := m.lookup(productID); b != nil {
		return b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.products[productID]
	if !ok {
		b = &bucket{}
		empty := map[string]models.QueueEntry{}
		b.snap.Store(&empty)
		m.products[productID] = b
	}
	return b
}

func (b *bucket) entries() map[string]models.QueueEntry {
	return *b.snap.Load()
}

func (m *Memory) Atomically(ctx context.Context, productID string, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := m.bucket(productID)
	b.write.Lock()
	defer b.write.Unlock()

	current := b.entries()
	staged := make(map[string]models.QueueEntry, len(current))
	for k, v := range current {
		staged[k] = v
	}
	if err := fn(&memTx{productID: productID, entries: staged}); err != nil {
		return err
	}
	b.snap.Store(&staged)
	return nil
}

func (m *Memory) Get(_ context.Context, productID, userID string) (*models.QueueEntry, error) {
	b := m.lookup(productID)
	if b == nil {
		return nil, ErrNotFound
	}
	e, ok := b.entries()[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *Memory) Count(_ context.Context, productID string) (int64, error) {
	b := m.lookup(productID)
	if b == nil {
		return 0, nil
	}
	return int64(len(b.entries())), nil
}

func (m *Memory) CountBatch(ctx context.Context, productIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(productIDs))
	for _, id := range productIDs {
		n, _ := m.Count(ctx, id)
		counts[id] = n
	}
	return counts, nil
}

func (m *Memory) ExpiredProducts(_ context.Context, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, b := range m.products {
		for _, e := range b.entries() {
			if e.ExpiredAt(now) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }

type memTx struct {
	productID string
	entries   map[string]models.QueueEntry
}

func (t *memTx) scoped(productID string) error {
	if productID != t.productID {
		return fmt.Errorf("storage: transaction is scoped to product %q, got %q", t.productID, productID)
	}
	return nil
}

func (t *memTx) Find(productID, userID string) (*models.QueueEntry, error) {
	if err := t.scoped(productID); err != nil {
		return nil, err
	}
	e, ok := t.entries[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (t *memTx) List(productID string) ([]models.QueueEntry, error) {
	if err := t.scoped(productID); err != nil {
		return nil, err
	}
	list := make([]models.QueueEntry, 0, len(t.entries))
	for _, e := range t.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Position != list[j].Position {
			return list[i].Position < list[j].Position
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func (t *memTx) Expired(productID string, now time.Time) ([]models.QueueEntry, error) {
	if err := t.scoped(productID); err != nil {
		return nil, err
	}
	var expired []models.QueueEntry
	for _, e := range t.entries {
		if e.ExpiredAt(now) {
			expired = append(expired, e)
		}
	}
	return expired, nil
}

func (t *memTx) Create(e *models.QueueEntry) error {
	if err := t.scoped(e.ProductID); err != nil {
		return err
	}
	if _, ok := t.entries[e.UserID]; ok {
		return fmt.Errorf("%w: user %s already queued for product %s", ErrConflict, e.UserID, e.ProductID)
	}
	t.entries[e.UserID] = *e
	return nil
}

func (t *memTx) Save(e *models.QueueEntry) error {
	if err := t.scoped(e.ProductID); err != nil {
		return err
	}
	cur, ok := t.entries[e.UserID]
	if !ok || cur.ID != e.ID {
		return ErrNotFound
	}
	cur.Status = e.Status
	cur.Position = e.Position
	cur.ExpiresAt = e.ExpiresAt
	cur.UpdatedAt = e.UpdatedAt
	t.entries[e.UserID] = cur
	return nil
}

func (t *memTx) Delete(e *models.QueueEntry) error {
	if err := t.scoped(e.ProductID); err != nil {
		return err
	}
	if cur, ok := t.entries[e.UserID]; ok && cur.ID == e.ID {
		delete(t.entries, e.UserID)
	}
	return nil
}
