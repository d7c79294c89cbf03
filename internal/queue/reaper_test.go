package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"draw_queue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepReclaimsExpiredActiveSlot(t *testing.T) {
	f := newFixture(t, Config{
		MaxConcurrentActive: 1,
		ActiveSlotTTL:       30 * time.Second,
		WaitingIdleTTL:      5 * time.Minute,
	})
	f.join(t, "p1", "u1")
	f.join(t, "p1", "u2")
	f.join(t, "p1", "u3")
	published := f.events.Len()

	f.clock.Advance(45 * time.Second)
	res, err := NewReaper(f.engine).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Products: 1, ExpiredActive: 1, Promoted: 1}, res)
	assert.False(t, f.status(t, "p1", "u1").InQueue)

	u2 := f.status(t, "p1", "u2")
	assert.Equal(t, models.StatusActive, u2.Status)
	assert.Equal(t, f.clock.Now().Add(30*time.Second), u2.ExpiresAt)
	assert.Equal(t, 1, f.status(t, "p1", "u3").Position)

	require.Equal(t, published+1, f.events.Len())
	ev := f.events.Last()
	assert.Equal(t, "expired", ev.Reason)
	assert.Equal(t, []string{"u2"}, ev.Roster.Promoted)
}

func TestSweepExpiresManyWaitersWithOneBroadcast(t *testing.T) {
	const waiters = 50
	f := newFixture(t, Config{
		MaxConcurrentActive: 1,
		ActiveSlotTTL:       10 * time.Minute,
		WaitingIdleTTL:      time.Minute,
	})
	f.join(t, "p1", "holder")
	for i := 0; i < waiters; i++ {
		f.join(t, "p1", fmt.Sprintf("w%02d", i))
	}
	published := f.events.Len()

	f.clock.Advance(2 * time.Minute)
	res, err := NewReaper(f.engine).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, waiters, res.ExpiredWaiting)
	assert.Equal(t, waiters, res.Expired())
	assert.Zero(t, res.Promoted)
	assert.Equal(t, published+1, f.events.Len())

	n, err := f.engine.Count(context.Background(), "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 0, f.events.Last().QueueLength-f.events.Last().ActiveCount)
}

func TestSweepKeepsHeartbeatingEntries(t *testing.T) {
	f := newFixture(t, testConfig(1))
	ctx := context.Background()
	f.join(t, "p1", "u1")
	f.join(t, "p1", "u2")
	f.join(t, "p1", "u3")

	// u2 keeps beating, u3 goes silent.
	for i := 0; i < 4; i++ {
		f.clock.Advance(20 * time.Second)
		_, err := f.engine.Heartbeat(ctx, "p1", "u2")
		require.NoError(t, err)
	}

	res, err := NewReaper(f.engine).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExpiredWaiting)
	assert.Zero(t, res.ExpiredActive)

	assert.Equal(t, models.StatusActive, f.status(t, "p1", "u1").Status)
	assert.Equal(t, 1, f.status(t, "p1", "u2").Position)
	assert.False(t, f.status(t, "p1", "u3").InQueue)
}

func TestSweepWithNothingExpired(t *testing.T) {
	f := newFixture(t, testConfig(1))
	f.join(t, "p1", "u1")
	published := f.events.Len()

	res, err := NewReaper(f.engine).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
	assert.Equal(t, published, f.events.Len())
}

func TestSweepCoversEveryProduct(t *testing.T) {
	f := newFixture(t, Config{
		MaxConcurrentActive: 1,
		ActiveSlotTTL:       time.Minute,
		WaitingIdleTTL:      10 * time.Minute,
		ReapParallelism:     2,
	})
	for i := 0; i < 5; i++ {
		p := fmt.Sprintf("p%d", i)
		f.join(t, p, "first")
		f.join(t, p, "second")
	}

	f.clock.Advance(2 * time.Minute)
	res, err := NewReaper(f.engine).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Products: 5, ExpiredActive: 5, Promoted: 5}, res)

	for i := 0; i < 5; i++ {
		p := fmt.Sprintf("p%d", i)
		assert.Equal(t, models.StatusActive, f.status(t, p, "second").Status)
	}
}
