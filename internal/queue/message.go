// Package queue carries reservation mutation notices over RabbitMQ.
package queue

import "time"

// DefaultQueue is the durable queue the outbox relay publishes to.
const DefaultQueue = "reservation.mutations"

// MutationMessage points the reconciliation worker at one outbox entry.
// The entry itself stays in the document store; the message only says
// which one to look at.
type MutationMessage struct {
	EntryID   string    `json:"entry_id"`
	Kind      string    `json:"kind"`
	CompanyID string    `json:"company_id"`
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
}
