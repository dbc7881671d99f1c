package events

import (
	"time"

	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketUpdated   EventType = "ticket_updated"
	EventTicketCommented EventType = "ticket_commented"
	EventSLABreached     EventType = "sla_breached"
)

// Event represents a domain event emitted by services. ActorID is empty
// for system-originated events such as sweep-detected breaches.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string                `json:"title"`
	Priority   domain.TicketPriority `json:"priority"`
	SLADueDate time.Time             `json:"sla_due_date"`
}

// TicketUpdatedPayload payload. Fields carries the names of the fields
// that changed in this mutation.
type TicketUpdatedPayload struct {
	Fields     []string `json:"fields"`
	NewVersion int64    `json:"new_version"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	CommentID       string  `json:"comment_id"`
	ParentCommentID *string `json:"parent_comment_id,omitempty"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	Priority   domain.TicketPriority `json:"priority"`
	SLADueDate time.Time             `json:"sla_due_date"`
}
