// Package tasks defines the messages that are sent to Kafka.
package tasks

import (
	"encoding/json"
	"time"

	"pizzabot-go/internal/model"
)

// OrderPlacedEvent is published after the pizza API accepted an order.
type OrderPlacedEvent struct {
	SessionID string             `json:"session_id"`
	Details   model.OrderDetails `json:"details"`
	Order     model.PlacedOrder  `json:"order"`
	// RawOrder keeps the API's data object verbatim for the receipt.
	RawOrder json.RawMessage `json:"raw_order,omitempty"`
	PlacedAt time.Time       `json:"placed_at"`
}
