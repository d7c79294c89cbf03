package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"draw_queue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(productID, userID string, status models.EntryStatus, position int, expires time.Time) *models.QueueEntry {
	return &models.QueueEntry{
		ID:        productID + "-" + userID,
		ProductID: productID,
		UserID:    userID,
		Status:    status,
		Position:  position,
		ExpiresAt: expires,
		CreatedAt: time.Now(),
	}
}

func TestMemoryAtomicallyCommits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	exp := time.Now().Add(time.Minute)

	err := m.Atomically(ctx, "p1", func(tx Tx) error {
		return tx.Create(entry("p1", "u1", models.StatusActive, 0, exp))
	})
	require.NoError(t, err)

	got, err := m.Get(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	n, err := m.Count(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMemoryAtomicallyRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	exp := time.Now().Add(time.Minute)
	boom := errors.New("boom")

	err := m.Atomically(ctx, "p1", func(tx Tx) error {
		if err := tx.Create(entry("p1", "u1", models.StatusActive, 0, exp)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = m.Get(ctx, "p1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCreateDuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	exp := time.Now().Add(time.Minute)

	err := m.Atomically(ctx, "p1", func(tx Tx) error {
		if err := tx.Create(entry("p1", "u1", models.StatusActive, 0, exp)); err != nil {
			return err
		}
		return tx.Create(entry("p1", "u1", models.StatusWaiting, 1, exp))
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryTxIsScopedToProduct(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Atomically(ctx, "p1", func(tx Tx) error {
		_, err := tx.List("p2")
		return err
	})
	assert.Error(t, err)
}

func TestMemoryReadsSeeCommittedSnapshotOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	exp := time.Now().Add(time.Minute)

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- m.Atomically(ctx, "p1", func(tx Tx) error {
			if err := tx.Create(entry("p1", "u1", models.StatusActive, 0, exp)); err != nil {
				return err
			}
			close(inside)
			<-release
			return nil
		})
	}()

	<-inside
	// The writer still holds the product lock; the read must neither block nor see it.
	n, err := m.Count(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	close(release)
	require.NoError(t, <-done)

	n, err = m.Count(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMemoryListOrdersByPosition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	exp := time.Now().Add(time.Minute)

	require.NoError(t, m.Atomically(ctx, "p1", func(tx Tx) error {
		for _, e := range []*models.QueueEntry{
			entry("p1", "w2", models.StatusWaiting, 2, exp),
			entry("p1", "a", models.StatusActive, 0, exp),
			entry("p1", "w1", models.StatusWaiting, 1, exp),
		} {
			if err := tx.Create(e); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, m.Atomically(ctx, "p1", func(tx Tx) error {
		list, err := tx.List("p1")
		if err != nil {
			return err
		}
		require.Len(t, list, 3)
		assert.Equal(t, "a", list[0].UserID)
		assert.Equal(t, "w1", list[1].UserID)
		assert.Equal(t, "w2", list[2].UserID)
		return nil
	}))
}

func TestMemoryExpiredProductsAndCountBatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	require.NoError(t, m.Atomically(ctx, "stale", func(tx Tx) error {
		return tx.Create(entry("stale", "u1", models.StatusActive, 0, now.Add(-time.Second)))
	}))
	require.NoError(t, m.Atomically(ctx, "fresh", func(tx Tx) error {
		return tx.Create(entry("fresh", "u1", models.StatusActive, 0, now.Add(time.Minute)))
	}))

	ids, err := m.ExpiredProducts(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, ids)

	counts, err := m.CountBatch(ctx, []string{"stale", "fresh", "nobody"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"stale": 1, "fresh": 1, "nobody": 0}, counts)
}
