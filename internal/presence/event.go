package presence

import (
	"context"
	"time"
)

const (
	EventConnected   = "connected"
	EventQueueUpdate = "queue_update"
)

// Personal statuses carried by delivered events. A subscriber that holds no entry
// (never joined, left or was reaped) sees StatusNotInQueue.
const (
	StatusActive     = "active"
	StatusWaiting    = "waiting"
	StatusNotInQueue = "not_in_queue"
)

// Roster is the post-transition composition of a product's queue. It travels with an
// event up to the hub (and across the redis bus) and is replaced by the receiving
// user's own status and position before delivery.
type Roster struct {
	Active   []string `json:"active"`
	Waiting  []string `json:"waiting"`
	Promoted []string `json:"promoted,omitempty"`
}

// Event is a state-change notification for one product.
type Event struct {
	Type        string    `json:"type"`
	ProductID   string    `json:"product_id"`
	UserID      string    `json:"user_id,omitempty"`
	QueueLength int       `json:"queue_length"`
	ActiveCount int       `json:"active_count"`
	Status      string    `json:"status,omitempty"`
	Position    int       `json:"position,omitempty"`
	Promoted    bool      `json:"promoted,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
	Roster      *Roster   `json:"roster,omitempty"`
}

// For returns the copy of ev delivered to userID's connections.
func (ev Event) For(userID string) Event {
	out := ev
	out.Roster = nil
	if ev.Roster == nil {
		return out
	}

	out.UserID = userID
	out.Status = StatusNotInQueue
	out.Position = 0
	for _, id := range ev.Roster.Active {
		if id == userID {
			out.Status = StatusActive
			break
		}
	}
	if out.Status == StatusNotInQueue {
		for i, id := range ev.Roster.Waiting {
			if id == userID {
				out.Status = StatusWaiting
				out.Position = i + 1
				break
			}
		}
	}
	for _, id := range ev.Roster.Promoted {
		if id == userID {
			out.Promoted = true
			break
		}
	}
	return out
}

// Publisher fans a product event out to every subscriber of that product. Delivery is
// best effort and Publish never reports failures to the caller.
//
// Hub only reaches connections held by this process. When admission runs on several
// processes, compose the engine with a RedisBus instead so that every process hears
// every product's events.
type Publisher interface {
	Publish(ctx context.Context, productID string, ev Event)
}
