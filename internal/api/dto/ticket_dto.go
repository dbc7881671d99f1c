package dto

import (
	"time"

	"github.com/kawal234/HelpDeskMIni/internal/domain"
	"github.com/kawal234/HelpDeskMIni/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	AssignedTo  *string               `json:"assignedTo"`
}

// UpdateTicketRequest payload. Version carries the expected ticket
// version and is mandatory; nil fields are left unchanged.
type UpdateTicketRequest struct {
	Version     *int64                 `json:"version"`
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Status      *domain.TicketStatus   `json:"status"`
	Priority    *domain.TicketPriority `json:"priority"`
	AssignedTo  *string                `json:"assignedTo"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content         string  `json:"content"`
	ParentCommentID *string `json:"parentCommentId"`
}

// TicketResponse mirrors a ticket on the wire.
type TicketResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	AssignedTo  *string               `json:"assignedTo"`
	CreatedBy   string                `json:"createdBy"`
	Version     int64                 `json:"version"`
	SLADueDate  time.Time             `json:"slaDueDate"`
	SLABreached bool                  `json:"slaBreached"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// TicketDetailResponse carries a ticket with its comment thread and history.
type TicketDetailResponse struct {
	Ticket   TicketResponse    `json:"ticket"`
	Comments []CommentResponse `json:"comments"`
	History  []HistoryResponse `json:"history"`
}

// CommentResponse represents a single thread comment.
type CommentResponse struct {
	ID              string    `json:"id"`
	TicketID        string    `json:"ticketId"`
	AuthorID        string    `json:"authorId"`
	Content         string    `json:"content"`
	ParentCommentID *string   `json:"parentCommentId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// HistoryResponse represents one audit trail entry.
type HistoryResponse struct {
	ID        string         `json:"id"`
	TicketID  string         `json:"ticketId"`
	ActorID   string         `json:"actorId"`
	Action    string         `json:"action"`
	OldValue  map[string]any `json:"oldValue,omitempty"`
	NewValue  map[string]any `json:"newValue,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Tickets []TicketResponse `json:"tickets"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// ReplayResponse is returned when an idempotency key has already been
// processed.
type ReplayResponse struct {
	Message     string    `json:"message"`
	ResourceID  string    `json:"resourceId"`
	ProcessedAt time.Time `json:"processedAt"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		AssignedTo:  t.AssignedTo,
		CreatedBy:   t.CreatedBy,
		Version:     t.Version,
		SLADueDate:  t.SLADueDate,
		SLABreached: t.SLABreached,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTicketListResponse maps a slice of domain tickets.
func NewTicketListResponse(tickets []domain.Ticket, limit, offset int) TicketListResponse {
	out := TicketListResponse{
		Tickets: make([]TicketResponse, 0, len(tickets)),
		Limit:   limit,
		Offset:  offset,
	}
	for i := range tickets {
		out.Tickets = append(out.Tickets, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewCommentResponse maps a domain comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:              c.ID,
		TicketID:        c.TicketID,
		AuthorID:        c.AuthorID,
		Content:         c.Content,
		ParentCommentID: c.ParentCommentID,
		CreatedAt:       c.CreatedAt,
	}
}

// NewHistoryResponses maps domain history entries.
func NewHistoryResponses(entries []domain.HistoryEntry) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{
			ID:        e.ID,
			TicketID:  e.TicketID,
			ActorID:   e.ActorID,
			Action:    e.Action,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// ToServiceCreateInput converts the request into a service input.
func (r CreateTicketRequest) ToServiceCreateInput() service.TicketCreateInput {
	return service.TicketCreateInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		AssignedTo:  r.AssignedTo,
	}
}

// ToServiceUpdateInput converts the request into a service input.
func (r UpdateTicketRequest) ToServiceUpdateInput() service.TicketUpdateInput {
	return service.TicketUpdateInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		AssignedTo:  r.AssignedTo,
	}
}
