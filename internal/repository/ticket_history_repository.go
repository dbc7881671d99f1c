package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

// TicketHistoryRepository reads the append-only audit trail. Entries are
// written inside the ticket and comment repositories' transactions so
// the trail can never drift from the state it describes.
type TicketHistoryRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, actor_id, action, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.Action,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// insertHistoryTx appends entries within an open transaction.
func insertHistoryTx(ctx context.Context, tx pgx.Tx, entries []domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, actor_id, action, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)`
	for i := range entries {
		if _, err := tx.Exec(ctx, query,
			entries[i].TicketID,
			entries[i].ActorID,
			entries[i].Action,
			entries[i].OldValue,
			entries[i].NewValue,
		); err != nil {
			return err
		}
	}
	return nil
}
