package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

// CommentRepository persists immutable ticket comments. Create appends
// the "commented" history entry in the same transaction.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment, entry *domain.HistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository instantiates repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment, entry *domain.HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO comments (ticket_id, author_id, content, parent_comment_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.Content,
		comment.ParentCommentID,
	).Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return err
	}

	if entry.NewValue == nil {
		entry.NewValue = map[string]any{}
	}
	entry.NewValue["comment_id"] = comment.ID
	if err := insertHistoryTx(ctx, tx, []domain.HistoryEntry{*entry}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, content, parent_comment_id, created_at
        FROM comments WHERE id=$1`
	var comment domain.Comment
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.AuthorID,
		&comment.Content,
		&comment.ParentCommentID,
		&comment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByTicket returns comments oldest first. Replies stay flat siblings
// ordered by creation time; parent_comment_id rides along for client
// side thread reconstruction.
func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, content, parent_comment_id, created_at
        FROM comments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.AuthorID,
			&comment.Content,
			&comment.ParentCommentID,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
