package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

// ErrVersionConflict signals that a conditional write matched no row for
// (id, expected version): another writer got there first. Callers decide
// it is a conflict only after confirming the ticket exists.
var ErrVersionConflict = errors.New("ticket version conflict")

// TicketFilter is an exact-match conjunction over ticket fields.
type TicketFilter struct {
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	AssignedTo  *string
	CreatedBy   *string
	SLABreached *bool
	Limit       int
	Offset      int
}

// TicketUpdate describes a conditional mutation. Nil field pointers are
// left untouched. SLADueDate is set when the priority changed and the
// deadline must be recomputed. History entries are appended in the same
// transaction as the write.
type TicketUpdate struct {
	ID              string
	ExpectedVersion int64
	Title           *string
	Description     *string
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	AssignedTo      *string
	SLADueDate      *time.Time
	History         []domain.HistoryEntry
}

// TicketRepository encapsulates ticket persistence. Create and
// UpdateConditional are atomic with their history appends: no ticket
// state exists without its trail.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket, entry *domain.HistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Search(ctx context.Context, term string, limit, offset int) ([]domain.Ticket, error)
	UpdateConditional(ctx context.Context, update TicketUpdate) (*domain.Ticket, error)
	FindSLABreached(ctx context.Context, now time.Time) ([]domain.Ticket, error)
	MarkSLABreached(ctx context.Context, id string, now time.Time) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, status, priority, assigned_to, created_by,
               version, sla_due_date, sla_breached, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, entry *domain.HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO tickets (title, description, status, priority, assigned_to, created_by, sla_due_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, version, sla_breached, created_at, updated_at`
	if err := tx.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.CreatedBy,
		ticket.SLADueDate,
	).Scan(&ticket.ID, &ticket.Version, &ticket.SLABreached, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	entry.TicketID = ticket.ID
	if err := insertHistoryTx(ctx, tx, []domain.HistoryEntry{*entry}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.SLABreached != nil {
		args = append(args, *filter.SLABreached)
		clauses = append(clauses, fmt.Sprintf("sla_breached=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), normalizeLimit(filter.Limit), normalizeOffset(filter.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Search(ctx context.Context, term string, limit, offset int) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT t.id, t.title, t.description, t.status, t.priority, t.assigned_to, t.created_by,
               t.version, t.sla_due_date, t.sla_breached, t.created_at, t.updated_at
        FROM tickets t
        LEFT JOIN comments c ON t.id = c.ticket_id
        WHERE t.title ILIKE $1 OR t.description ILIKE $1 OR c.content ILIKE $1
        GROUP BY t.id
        ORDER BY t.created_at DESC
        LIMIT %d OFFSET %d`, normalizeLimit(limit), normalizeOffset(offset))

	pattern := "%" + strings.TrimSpace(term) + "%"
	rows, err := r.pool.Query(ctx, query, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// UpdateConditional applies the whitelisted field changes as a single
// conditional write keyed on the expected version, bumping version by
// one, and appends the history entries in the same transaction.
func (r *ticketRepository) UpdateConditional(ctx context.Context, update TicketUpdate) (*domain.Ticket, error) {
	sets := []string{"version = version + 1", "updated_at = NOW()"}
	args := []any{}

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if update.Title != nil {
		appendSet("title", *update.Title)
	}
	if update.Description != nil {
		appendSet("description", *update.Description)
	}
	if update.Status != nil {
		appendSet("status", *update.Status)
	}
	if update.Priority != nil {
		appendSet("priority", *update.Priority)
	}
	if update.AssignedTo != nil {
		appendSet("assigned_to", *update.AssignedTo)
	}
	if update.SLADueDate != nil {
		appendSet("sla_due_date", *update.SLADueDate)
	}

	args = append(args, update.ID)
	idPos := len(args)
	args = append(args, update.ExpectedVersion)
	versionPos := len(args)

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d AND version=$%d RETURNING %s`,
		strings.Join(sets, ", "), idPos, versionPos, ticketColumns)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var ticket domain.Ticket
	if err := scanTicket(tx.QueryRow(ctx, query, args...), &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionConflict
		}
		return nil, err
	}

	if err := insertHistoryTx(ctx, tx, update.History); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) FindSLABreached(ctx context.Context, now time.Time) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE sla_due_date < $1 AND status NOT IN ('resolved', 'closed')
        ORDER BY sla_due_date ASC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// MarkSLABreached is the monotonic false-to-true transition. The guard
// lives in the WHERE clause so concurrent callers cannot disagree.
func (r *ticketRepository) MarkSLABreached(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET sla_breached = TRUE
        WHERE id=$1 AND sla_breached = FALSE AND sla_due_date < $2
          AND status NOT IN ('resolved', 'closed')`
	cmd, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedTo,
		&ticket.CreatedBy,
		&ticket.Version,
		&ticket.SLADueDate,
		&ticket.SLABreached,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
