package models

import (
	"time"
)

// EntryStatus is the admission state of a queue entry. Left and expired entries are
// deleted, so only the two live states are ever stored.
type EntryStatus string

const (
	StatusWaiting EntryStatus = "waiting"
	StatusActive  EntryStatus = "active"
)

// QueueEntry is one user's participation in one product's draw queue.
type QueueEntry struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	ProductID string      `gorm:"uniqueIndex:idx_queue_entries_product_user;index:idx_queue_entries_product_status;not null"`
	UserID    string      `gorm:"uniqueIndex:idx_queue_entries_product_user;not null"`
	Status    EntryStatus `gorm:"type:varchar(16);index:idx_queue_entries_product_status;not null"`
	Position  int         `gorm:"not null;default:0"` // 1-based rank among waiting entries, 0 when active
	ExpiresAt time.Time   `gorm:"index;not null"`     // draw-right deadline (active) or abandonment deadline (waiting)
	CreatedAt time.Time   `gorm:"not null"`           // arrival order
	UpdatedAt time.Time
}

func (e *QueueEntry) IsActive() bool {
	return e.Status == StatusActive
}

// ExpiredAt reports whether the entry's deadline has passed at now.
func (e *QueueEntry) ExpiredAt(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
