package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

// ErrKeyReserved signals a concurrent request already inserted a record
// for the same (key, resource type) pair.
var ErrKeyReserved = errors.New("idempotency key already reserved")

// IdempotencyRepository persists the request-key ledger. The unique
// index on (key, resource_type) is the at-most-once guarantee.
type IdempotencyRepository interface {
	Get(ctx context.Context, key, resourceType string) (*domain.IdempotencyRecord, error)
	Insert(ctx context.Context, record *domain.IdempotencyRecord) error
	SetResourceID(ctx context.Context, key, resourceType, resourceID string) error
	Delete(ctx context.Context, key, resourceType string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type idempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepository instantiates repository.
func NewIdempotencyRepository(pool *pgxpool.Pool) IdempotencyRepository {
	return &idempotencyRepository{pool: pool}
}

func (r *idempotencyRepository) Get(ctx context.Context, key, resourceType string) (*domain.IdempotencyRecord, error) {
	const query = `
        SELECT key, resource_type, resource_id, created_at, expires_at
        FROM idempotency_keys WHERE key=$1 AND resource_type=$2`
	var record domain.IdempotencyRecord
	if err := r.pool.QueryRow(ctx, query, key, resourceType).Scan(
		&record.Key,
		&record.ResourceType,
		&record.ResourceID,
		&record.CreatedAt,
		&record.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *idempotencyRepository) Insert(ctx context.Context, record *domain.IdempotencyRecord) error {
	const query = `
        INSERT INTO idempotency_keys (key, resource_type, expires_at)
        VALUES ($1,$2,$3)
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		record.Key,
		record.ResourceType,
		record.ExpiresAt,
	).Scan(&record.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrKeyReserved
	}
	return err
}

func (r *idempotencyRepository) SetResourceID(ctx context.Context, key, resourceType, resourceID string) error {
	const query = `
        UPDATE idempotency_keys SET resource_id=$1 WHERE key=$2 AND resource_type=$3`
	_, err := r.pool.Exec(ctx, query, resourceID, key, resourceType)
	return err
}

func (r *idempotencyRepository) Delete(ctx context.Context, key, resourceType string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE key=$1 AND resource_type=$2`, key, resourceType)
	return err
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
