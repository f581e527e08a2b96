package model

import (
	"fmt"
	"time"
)

// Event priorities carried as display hints on an OrderEvent.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// OrderEvent is the payload the server emits when an order is created or
// assigned. It is a snapshot: fields are never refreshed after emission.
type OrderEvent struct {
	// ID is unique per emission and is the deduplication key on the client.
	ID string `json:"id"`

	// OrderID and OrderNumber reference the order; they are not foreign keys.
	OrderID     int64 `json:"orderId"`
	OrderNumber int64 `json:"orderNumber"`

	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail,omitempty"`

	// Total is a decimal amount kept as a string to avoid float rounding.
	Total     string `json:"total"`
	ItemCount int    `json:"itemCount"`

	// Timestamp is the emission time.
	Timestamp time.Time `json:"timestamp"`

	Message  string `json:"message,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// Key returns the deduplication key for the event. Events without an id fall
// back to the emission time plus the order id, so redelivery of the same
// emission still collapses to one entry.
func (e OrderEvent) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("%d-%d", e.Timestamp.UnixMilli(), e.OrderID)
}

// Notification is a received OrderEvent held by the client together with
// its read state.
type Notification struct {
	OrderEvent

	// Read is client-only state and never sent over the wire.
	Read bool `json:"-"`
}
