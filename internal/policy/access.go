// Package policy holds the pure access predicates evaluated before any
// ticket read or write reaches the store. Role and ownership decisions
// live here and nowhere else.
package policy

import "github.com/kawal234/HelpDeskMIni/internal/domain"

// CanAccess reports whether the actor may read the ticket and its
// comments and history. Staff see everything; plain users only their
// own tickets.
func CanAccess(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil || ticket == nil {
		return false
	}
	if actor.Role.Staff() {
		return true
	}
	return ticket.CreatedBy == actor.ID
}

// CanModify reports whether the actor may mutate the ticket. Staff
// always may. A plain user may only edit their own ticket while it is
// still open: once triage moves it out of "open" the creator loses
// edit rights.
func CanModify(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil || ticket == nil {
		return false
	}
	if actor.Role.Staff() {
		return true
	}
	return ticket.CreatedBy == actor.ID && ticket.Status == domain.TicketStatusOpen
}

// CanAssign reports whether the actor may set a ticket's assignee.
func CanAssign(actor *domain.User) bool {
	return actor != nil && actor.Role.Staff()
}
