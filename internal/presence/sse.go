package presence

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
)

// pingComment is an SSE comment line. EventSource clients discard it, so it keeps
// proxies from closing the idle stream without ever surfacing as an event.
const pingComment = ": ping\n\n"

// StreamSSE writes the client's events to w as server-sent events until ctx is done,
// the hub closes the client, or a write fails. The caller owns unsubscribing.
func StreamSSE(ctx context.Context, w http.ResponseWriter, client *Client, ping time.Duration) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("presence: response writer does not support flushing")
	}
	if ping <= 0 {
		ping = DefaultConfig().PingInterval
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-client.Send:
			if !ok {
				return nil
			}
			if err := sse.Encode(w, sse.Event{Event: ev.Type, Data: ev}); err != nil {
				return err
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, pingComment); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}
