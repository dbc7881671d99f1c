package domain

import "time"

// Comment is an immutable message on a ticket thread. ParentCommentID
// forms a single-level reply; the parent must belong to the same ticket.
type Comment struct {
	ID              string
	TicketID        string
	AuthorID        string
	Content         string
	ParentCommentID *string
	CreatedAt       time.Time
}
