package response

import (
	"time"

	"draw_queue/internal/models"
)

// SuccessResponse is a plain acknowledgement.
type SuccessResponse struct {
	Message string `json:"message" example:"left the queue"`
}

// ErrorResponse is returned by every failing endpoint.
type ErrorResponse struct {
	// Machine-readable error code
	// example: MISSING_PARAMETER
	Code string `json:"code"`

	// Human-readable message
	// example: product id is required
	Message string `json:"message"`

	// Optional details
	Details string `json:"details,omitempty"`
}

// EntryResponse describes the caller's queue entry after join or heartbeat.
type EntryResponse struct {
	ID        string    `json:"id" example:"7f1c1a1e-3f44-4f7e-9d8c-2b1f0f8f2b6a"`
	ProductID string    `json:"product_id" example:"sku-42"`
	Status    string    `json:"status" example:"waiting"`
	Position  int       `json:"position" example:"3"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewEntryResponse(e *models.QueueEntry) EntryResponse {
	return EntryResponse{
		ID:        e.ID,
		ProductID: e.ProductID,
		Status:    string(e.Status),
		Position:  e.Position,
		ExpiresAt: e.ExpiresAt,
	}
}

// StatusResponse is the caller's view of a product queue. Anonymous callers and users
// without an entry only get the queue length.
type StatusResponse struct {
	InQueue     bool       `json:"in_queue"`
	Status      string     `json:"status,omitempty" example:"active"`
	Position    int        `json:"position,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	QueueLength *int64     `json:"queue_length,omitempty" example:"12"`
}

// CountResponse maps product ids to the number of users queued on them.
type CountResponse map[string]int64
