package domain

import "time"

// History action tags. Field updates use the "updated_<field>" form so
// the trail records one entry per changed field.
const (
	HistoryActionCreated   = "created"
	HistoryActionCommented = "commented"
)

// HistoryActionUpdated returns the action tag for a field change.
func HistoryActionUpdated(field string) string {
	return "updated_" + field
}

// HistoryEntry is an immutable audit trail record. Entries are append
// only; one mutation may produce several entries.
type HistoryEntry struct {
	ID        string
	TicketID  string
	ActorID   string
	Action    string
	OldValue  map[string]any
	NewValue  map[string]any
	CreatedAt time.Time
}
