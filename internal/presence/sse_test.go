package presence

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSSEWritesEventsAndPings(t *testing.T) {
	h := startHub(t, 8)
	client, err := h.Subscribe("p1", "u1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	done := make(chan error)
	go func() {
		done <- StreamSSE(context.Background(), rec, client, 20*time.Millisecond)
	}()

	h.Publish(context.Background(), "p1", Event{
		Type:        EventQueueUpdate,
		ProductID:   "p1",
		QueueLength: 1,
		Roster:      &Roster{Active: []string{"u1"}},
	})
	time.Sleep(60 * time.Millisecond)
	client.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream did not finish after unsubscribe")
	}

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Contains(t, body, "event:connected\n")
	assert.Contains(t, body, "event:queue_update\n")
	assert.Contains(t, body, `"status":"active"`)
	assert.NotContains(t, body, "roster")
	assert.Contains(t, body, pingComment)

	// Every ping is a comment line, never a data line.
	for _, line := range strings.Split(body, "\n") {
		if strings.Contains(line, "ping") {
			assert.True(t, strings.HasPrefix(line, ":"), line)
		}
	}
}

func TestStreamSSEStopsOnContextCancel(t *testing.T) {
	h := startHub(t, 8)
	client, err := h.Subscribe("p1", "u1")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- StreamSSE(ctx, httptest.NewRecorder(), client, time.Second)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream ignored cancellation")
	}
}
