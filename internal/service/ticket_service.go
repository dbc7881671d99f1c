package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kawal234/HelpDeskMIni/internal/clock"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
	"github.com/kawal234/HelpDeskMIni/internal/events"
	"github.com/kawal234/HelpDeskMIni/internal/policy"
	"github.com/kawal234/HelpDeskMIni/internal/repository"
	"github.com/kawal234/HelpDeskMIni/internal/sla"
	apperrors "github.com/kawal234/HelpDeskMIni/pkg/util"
)

// TicketService coordinates ticket mutations: access policy, the
// idempotency guard, the conditional version-checked write with its
// audit trail, and SLA re-evaluation, in that order.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	slaPolicy  sla.Policy
	evaluator  *sla.Evaluator
	guard      *IdempotencyGuard
	clock      clock.Clock
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	SLAPolicy   sla.Policy
	Evaluator   *sla.Evaluator
	Guard       *IdempotencyGuard
	Clock       clock.Clock
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	AssignedTo  *string
}

// TicketUpdateInput carries the whitelisted mutable fields. Nil means
// the field is not part of this mutation.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	AssignedTo  *string
}

func (in TicketUpdateInput) empty() bool {
	return in.Title == nil && in.Description == nil && in.Status == nil &&
		in.Priority == nil && in.AssignedTo == nil
}

// TicketListFilter describes listing filters; an exact-match conjunction.
type TicketListFilter struct {
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	AssignedTo  *string
	CreatedBy   *string
	SLABreached *bool
	Limit       int
	Offset      int
}

// TicketCreateResult reports creation outcome. Replayed means an
// unexpired idempotency record short-circuited the call and Ticket is
// the previously created resource.
type TicketCreateResult struct {
	Ticket      *domain.Ticket
	Replayed    bool
	ProcessedAt time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		slaPolicy:  deps.SLAPolicy,
		evaluator:  deps.Evaluator,
		guard:      deps.Guard,
		clock:      deps.Clock,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket files a ticket at version 1 with its SLA deadline and the
// "created" history entry, guarded by the caller's idempotency key when
// one is supplied.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput, idempotencyKey string) (*TicketCreateResult, error) {
	if idempotencyKey != "" {
		begin, err := s.guard.Begin(ctx, idempotencyKey, ResourceTypeTicket)
		if err != nil {
			return nil, mapStoreError(err, "idempotency record")
		}
		if begin.Replay {
			ticket, err := s.tickets.GetByID(ctx, begin.ResourceID)
			if err != nil {
				return nil, mapStoreError(err, "ticket")
			}
			return &TicketCreateResult{Ticket: ticket, Replayed: true, ProcessedAt: begin.ProcessedAt}, nil
		}
	}

	ticket, err := s.createTicket(ctx, actor, input)
	if err != nil {
		if idempotencyKey != "" {
			s.guard.Abort(ctx, idempotencyKey, ResourceTypeTicket)
		}
		return nil, err
	}
	if idempotencyKey != "" {
		s.guard.Complete(ctx, idempotencyKey, ResourceTypeTicket, ticket.ID)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			Title:      ticket.Title,
			Priority:   ticket.Priority,
			SLADueDate: ticket.SLADueDate,
		},
	})
	return &TicketCreateResult{Ticket: ticket}, nil
}

func (s *TicketService) createTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if input.AssignedTo != nil {
		if err := s.ensureUserExists(ctx, *input.AssignedTo); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	now := s.clock.Now()
	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		AssignedTo:  input.AssignedTo,
		CreatedBy:   actor.ID,
		SLADueDate:  s.slaPolicy.DueDate(priority, now),
	}

	entry := &domain.HistoryEntry{
		ActorID: actor.ID,
		Action:  domain.HistoryActionCreated,
		NewValue: map[string]any{
			"title":       ticket.Title,
			"description": ticket.Description,
			"priority":    ticket.Priority,
		},
	}
	if err := s.tickets.Create(ctx, ticket, entry); err != nil {
		return nil, mapStoreError(err, "ticket")
	}
	return ticket, nil
}

// GetTicket returns a ticket with its comment thread and audit trail.
// Reading has no side effects; breach evaluation happens on the write
// path and in the sweep only.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.Comment, []domain.HistoryEntry, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, nil, mapStoreError(err, "ticket")
	}
	if !policy.CanAccess(actor, ticket) {
		return nil, nil, nil, apperrors.NewForbidden("you do not have permission to view this ticket")
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, nil, mapStoreError(err, "comments")
	}
	history, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, nil, mapStoreError(err, "history")
	}
	return ticket, comments, history, nil
}

// ListTickets returns tickets matching the filter, newest first,
// restricted to what the actor may see.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Status:      filter.Status,
		Priority:    filter.Priority,
		AssignedTo:  filter.AssignedTo,
		CreatedBy:   filter.CreatedBy,
		SLABreached: filter.SLABreached,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
	if err != nil {
		return nil, mapStoreError(err, "tickets")
	}
	return filterAccessible(actor, tickets), nil
}

// SearchTickets matches the term case-insensitively against title,
// description and comment content, one result per ticket.
func (s *TicketService) SearchTickets(ctx context.Context, actor *domain.User, term string, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.Search(ctx, term, limit, offset)
	if err != nil {
		return nil, mapStoreError(err, "tickets")
	}
	return filterAccessible(actor, tickets), nil
}

// ListSLABreached returns tickets past their deadline and still
// unresolved, regardless of whether the breach flag is already set.
func (s *TicketService) ListSLABreached(ctx context.Context, actor *domain.User) ([]domain.Ticket, error) {
	tickets, err := s.tickets.FindSLABreached(ctx, s.clock.Now())
	if err != nil {
		return nil, mapStoreError(err, "tickets")
	}
	return filterAccessible(actor, tickets), nil
}

// UpdateTicket applies whitelisted field changes as one conditional
// write keyed on the caller's expected version. Not-found and version
// mismatch are reported as distinct kinds: existence is checked first,
// so a zero-row conditional write means a concurrent writer won.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, expectedVersion int64, input TicketUpdateInput) (*domain.Ticket, error) {
	if input.empty() {
		return nil, apperrors.NewValidationError("no valid fields to update", nil)
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, apperrors.NewValidationError("title must not be empty", nil)
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err, "ticket")
	}
	if !policy.CanModify(actor, ticket) {
		return nil, apperrors.NewForbidden("you do not have permission to modify this ticket")
	}
	if input.AssignedTo != nil {
		if !policy.CanAssign(actor) {
			return nil, apperrors.NewForbidden("only agents and admins may assign tickets")
		}
		if err := s.ensureUserExists(ctx, *input.AssignedTo); err != nil {
			return nil, err
		}
	}

	update := repository.TicketUpdate{
		ID:              ticket.ID,
		ExpectedVersion: expectedVersion,
		Title:           input.Title,
		Description:     input.Description,
		Status:          input.Status,
		Priority:        input.Priority,
		AssignedTo:      input.AssignedTo,
	}

	now := s.clock.Now()
	if input.Priority != nil && *input.Priority != ticket.Priority {
		due := s.slaPolicy.DueDate(*input.Priority, now)
		update.SLADueDate = &due
	}

	var changed []string
	record := func(field string, oldValue, newValue any) {
		changed = append(changed, field)
		update.History = append(update.History, domain.HistoryEntry{
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Action:   domain.HistoryActionUpdated(field),
			OldValue: map[string]any{field: oldValue},
			NewValue: map[string]any{field: newValue},
		})
	}
	if input.Title != nil {
		record("title", ticket.Title, *input.Title)
	}
	if input.Description != nil {
		record("description", ticket.Description, *input.Description)
	}
	if input.Status != nil {
		record("status", ticket.Status, *input.Status)
	}
	if input.Priority != nil {
		record("priority", ticket.Priority, *input.Priority)
	}
	if input.AssignedTo != nil {
		record("assigned_to", ticket.AssignedTo, *input.AssignedTo)
	}

	updated, err := s.tickets.UpdateConditional(ctx, update)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict(
				"ticket was modified by another user, please refresh and try again",
				map[string]any{"expected_version": expectedVersion})
		}
		return nil, mapStoreError(err, "ticket")
	}

	breached, err := s.evaluator.Evaluate(ctx, updated)
	if err != nil {
		// The mutation itself committed; breach detection will catch up
		// on the next sweep.
		s.logger.Warn("post-update sla evaluation failed",
			zap.String("ticket_id", updated.ID), zap.Error(err))
	}
	if breached {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventSLABreached,
			TicketID: updated.ID,
			Payload: events.SLABreachedPayload{
				Priority:   updated.Priority,
				SLADueDate: updated.SLADueDate,
			},
		})
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: updated.ID,
		ActorID:  actor.ID,
		Payload: events.TicketUpdatedPayload{
			Fields:     changed,
			NewVersion: updated.Version,
		},
	})
	return updated, nil
}

// AddComment appends an immutable comment and its history entry. A reply
// must reference a parent comment on the same ticket.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, content string, parentCommentID *string) (*domain.Comment, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err, "ticket")
	}
	if !policy.CanAccess(actor, ticket) {
		return nil, apperrors.NewForbidden("you do not have permission to comment on this ticket")
	}

	if parentCommentID != nil {
		parent, err := s.comments.GetByID(ctx, *parentCommentID)
		if err != nil || parent.TicketID != ticket.ID {
			return nil, apperrors.NewValidationError("parent comment not found", nil)
		}
	}

	comment := &domain.Comment{
		TicketID:        ticket.ID,
		AuthorID:        actor.ID,
		Content:         strings.TrimSpace(content),
		ParentCommentID: parentCommentID,
	}
	entry := &domain.HistoryEntry{
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Action:   domain.HistoryActionCommented,
		NewValue: map[string]any{"content": comment.Content},
	}
	if err := s.comments.Create(ctx, comment, entry); err != nil {
		return nil, mapStoreError(err, "comment")
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCommentedPayload{
			CommentID:       comment.ID,
			ParentCommentID: comment.ParentCommentID,
		},
	})
	return comment, nil
}

// GetHistory returns the audit trail oldest first.
func (s *TicketService) GetHistory(ctx context.Context, actor *domain.User, ticketID string) ([]domain.HistoryEntry, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err, "ticket")
	}
	if !policy.CanAccess(actor, ticket) {
		return nil, apperrors.NewForbidden("you do not have permission to view this ticket history")
	}
	history, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, mapStoreError(err, "history")
	}
	return history, nil
}

func (s *TicketService) ensureUserExists(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if apperrors.IsCode(mapStoreError(err, "user"), "NOT_FOUND") {
			return apperrors.NewValidationError("assigned user not found", nil)
		}
		return mapStoreError(err, "user")
	}
	return nil
}

func filterAccessible(actor *domain.User, tickets []domain.Ticket) []domain.Ticket {
	accessible := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if policy.CanAccess(actor, &tickets[i]) {
			accessible = append(accessible, tickets[i])
		}
	}
	return accessible
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
