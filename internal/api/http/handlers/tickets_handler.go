package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kawal234/HelpDeskMIni/internal/api/dto"
	"github.com/kawal234/HelpDeskMIni/internal/auth"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
	"github.com/kawal234/HelpDeskMIni/internal/observability"
	"github.com/kawal234/HelpDeskMIni/internal/service"
	apperrors "github.com/kawal234/HelpDeskMIni/pkg/util"
)

const idempotencyHeader = "Idempotency-Key"

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	metrics *observability.Metrics
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, metrics *observability.Metrics) *TicketsHandler {
	return &TicketsHandler{service: ticketService, metrics: metrics}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	key := strings.TrimSpace(c.Get(idempotencyHeader))
	if key == "" {
		return apperrors.NewValidationError("Idempotency-Key header required", nil)
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.service.CreateTicket(c.UserContext(), actor, req.ToServiceCreateInput(), key)
	if err != nil {
		return err
	}
	if result.Replayed {
		h.metrics.RecordIdempotentReplay()
		return c.JSON(dto.ReplayResponse{
			Message:     "Request already processed",
			ResourceID:  result.Ticket.ID,
			ProcessedAt: result.ProcessedAt,
		})
	}
	return c.Status(http.StatusCreated).JSON(dto.NewTicketResponse(result.Ticket))
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketListResponse(tickets, filter.Limit, filter.Offset))
}

// SearchTickets GET /api/tickets/search.
func (h *TicketsHandler) SearchTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		return apperrors.NewValidationError("query parameter q required", nil)
	}
	limit := c.QueryInt("limit", 0)
	offset := c.QueryInt("offset", 0)
	tickets, err := h.service.SearchTickets(c.UserContext(), actor, term, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketListResponse(tickets, limit, offset))
}

// ListSLABreached GET /api/tickets/sla-breached.
func (h *TicketsHandler) ListSLABreached(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	tickets, err := h.service.ListSLABreached(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketListResponse(tickets, 0, 0))
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	ticket, comments, history, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	detail := dto.TicketDetailResponse{
		Ticket:   dto.NewTicketResponse(ticket),
		Comments: make([]dto.CommentResponse, 0, len(comments)),
		History:  dto.NewHistoryResponses(history),
	}
	for i := range comments {
		detail.Comments = append(detail.Comments, dto.NewCommentResponse(&comments[i]))
	}
	return c.JSON(detail)
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Version == nil {
		return apperrors.NewValidationError("version required", nil)
	}

	ticket, err := h.service.UpdateTicket(c.UserContext(), actor, c.Params("id"), *req.Version, req.ToServiceUpdateInput())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("content required", nil)
	}

	comment, err := h.service.AddComment(c.UserContext(), actor, c.Params("id"), req.Content, req.ParentCommentID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewCommentResponse(comment))
}

// GetHistory GET /api/tickets/:id/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	history, err := h.service.GetHistory(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"history": dto.NewHistoryResponses(history)})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.TicketStatus(raw)
		if !status.Valid() {
			return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
		}
		filter.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := domain.TicketPriority(raw)
		if !priority.Valid() {
			return filter, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": raw})
		}
		filter.Priority = &priority
	}
	if raw := c.Query("assignedTo"); raw != "" {
		filter.AssignedTo = &raw
	}
	if raw := c.Query("createdBy"); raw != "" {
		filter.CreatedBy = &raw
	}
	if raw := c.Query("slaBreached"); raw != "" {
		breached, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid slaBreached filter", map[string]any{"slaBreached": raw})
		}
		filter.SLABreached = &breached
	}
	return filter, nil
}
