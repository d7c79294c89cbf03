package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"draw_queue/internal/metrics"
)

// ErrHubClosed is returned by Subscribe once the hub has shut down.
var ErrHubClosed = errors.New("presence: hub closed")

// Config controls the presence layer.
type Config struct {
	Fanout       string        `mapstructure:"fanout"` // local or redis
	PingInterval time.Duration `mapstructure:"ping_interval"`
	BufferSize   int           `mapstructure:"buffer_size"`
}

const (
	FanoutLocal = "local"
	FanoutRedis = "redis"
)

func DefaultConfig() Config {
	return Config{
		Fanout:       FanoutLocal,
		PingInterval: 30 * time.Second,
		BufferSize:   64,
	}
}

// Hub хранит подключения этого процесса, сгруппированные по ID товара.
type Hub struct {
	// For every product the set of subscribed clients.
	clients map[string]map[*Client]bool
	// Client registration.
	register chan *Client
	// Removal of a single client.
	unregister chan *Client
	// Events to fan out.
	broadcast chan message
	// Guards clients for readers outside Run.
	mu sync.RWMutex

	bufferSize int
	done       chan struct{}
}

type message struct {
	ProductID string
	Event     Event
}

// Client is one live push channel. Transports drain Send until it is closed.
type Client struct {
	ProductID string
	UserID    string
	Send      chan Event

	hub *Hub
}

// Close unsubscribes the client. It is safe to call more than once.
func (c *Client) Close() {
	c.hub.Unsubscribe(c)
}

// NewHub creates a hub whose clients buffer up to bufferSize undelivered events.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultConfig().BufferSize
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		bufferSize: bufferSize,
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then closes every
// client so that their transports finish.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.ProductID] == nil {
				h.clients[client.ProductID] = make(map[*Client]bool)
			}
			h.clients[client.ProductID][client] = true
			h.mu.Unlock()
			metrics.Subscribers.Inc()
		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.deliver(ctx, msg)
		}
	}
}

// deliver pushes msg to every client of its product. A client whose buffer is full is
// dropped instead of slowing down the others.
func (h *Hub) deliver(ctx context.Context, msg message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[msg.ProductID] {
		select {
		case client.Send <- msg.Event.For(client.UserID):
		default:
			slog.Default().DebugContext(ctx, "dropping slow presence client",
				slog.String("product_id", client.ProductID),
				slog.String("user_id", client.UserID),
			)
			metrics.EventsDropped.Inc()
			h.remove(client)
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.ProductID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	metrics.Subscribers.Dec()
	if len(clients) == 0 {
		delete(h.clients, client.ProductID)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for _, clients := range h.clients {
		for client := range clients {
			h.remove(client)
		}
	}
	h.mu.Unlock()
	close(h.done)
}

// Subscribe registers a client for productID and queues the connected acknowledgement
// as its first event.
func (h *Hub) Subscribe(productID, userID string) (*Client, error) {
	client := &Client{
		ProductID: productID,
		UserID:    userID,
		Send:      make(chan Event, h.bufferSize),
		hub:       h,
	}
	client.Send <- Event{
		Type:      EventConnected,
		ProductID: productID,
		UserID:    userID,
		At:        time.Now(),
	}
	select {
	case h.register <- client:
		return client, nil
	case <-h.done:
		return nil, ErrHubClosed
	}
}

// Unsubscribe removes the client. Unknown clients are ignored.
func (h *Hub) Unsubscribe(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish implements Publisher for connections held by this process.
func (h *Hub) Publish(ctx context.Context, productID string, ev Event) {
	select {
	case h.broadcast <- message{ProductID: productID, Event: ev}:
	case <-h.done:
	case <-ctx.Done():
	}
}

// Subscribers returns the number of live connections on productID.
func (h *Hub) Subscribers(productID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[productID])
}
