// Package queue defines the domain events published to the message
// broker and the background consumer that records them.
package queue

// EventsQueueName is the durable queue all gate events flow through.
const EventsQueueName = "gate.events"

// Event types carried in GateEvent.Type.
const (
	EventTicketIssued  = "ticket.issued"
	EventTicketScanned = "ticket.scanned"
	EventSystemReset   = "system.reset"
)

// GateEvent is the envelope for every domain event. Ticket fields
// are set for issued/scanned events; the reset counters are set for
// system.reset. Downstream consumers can log, audit or notify from
// it without touching the primary store.
type GateEvent struct {
	Type           string `json:"type"`
	TicketID       string `json:"ticket_id,omitempty"`
	Name           string `json:"name,omitempty"`
	SeatID         string `json:"seat_id,omitempty"`
	SeatsReset     int    `json:"seats_reset,omitempty"`
	TicketsCleared int    `json:"tickets_cleared,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}
