package presence

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// ServeWebsocket pumps the client's events to conn as JSON text frames until either
// side goes away. Liveness uses websocket ping control frames, which browsers answer
// without surfacing them to application code.
func ServeWebsocket(conn *websocket.Conn, client *Client, ping time.Duration) {
	if ping <= 0 {
		ping = DefaultConfig().PingInterval
	}
	go writePump(conn, client, ping)
	readPump(conn, client, ping)
}

// readPump only watches for the connection going away; clients have nothing to send.
func readPump(conn *websocket.Conn, client *Client, ping time.Duration) {
	defer func() {
		client.Close()
		conn.Close()
	}()
	pongWait := ping * 2
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Default().Debug("presence websocket closed",
					slog.String("product_id", client.ProductID),
					slog.String("user_id", client.UserID),
					slog.String("err", err.Error()),
				)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, client *Client, ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case ev, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
