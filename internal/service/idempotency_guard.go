package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kawal234/HelpDeskMIni/internal/clock"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
	"github.com/kawal234/HelpDeskMIni/internal/repository"
	apperrors "github.com/kawal234/HelpDeskMIni/pkg/util"
)

// IdempotencyGuard wraps unsafe creation operations behind a
// client-supplied request key. Exactly one record exists per
// (key, resource type) until its TTL elapses.
type IdempotencyGuard struct {
	records repository.IdempotencyRepository
	ttl     time.Duration
	clock   clock.Clock
	logger  *zap.Logger
}

// BeginResult reports Begin's decision. Replay means the operation
// already ran; ResourceID is its recorded outcome.
type BeginResult struct {
	Replay      bool
	ResourceID  string
	ProcessedAt time.Time
}

// NewIdempotencyGuard constructs the guard.
func NewIdempotencyGuard(records repository.IdempotencyRepository, ttl time.Duration, clk clock.Clock, logger *zap.Logger) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyGuard{records: records, ttl: ttl, clock: clk, logger: logger}
}

// Begin resolves a request key before the guarded operation runs. An
// unexpired completed record replays the prior outcome. Expired records
// are deleted and the key reused. A record that was reserved but never
// completed (the operation failed, or the process died before Abort)
// is also deleted so a legitimate retry can execute; replays therefore
// never report a missing resource id.
func (g *IdempotencyGuard) Begin(ctx context.Context, key, resourceType string) (BeginResult, error) {
	record, err := g.records.Get(ctx, key, resourceType)
	switch {
	case err == nil:
		now := g.clock.Now()
		if !record.Expired(now) && record.ResourceID != nil {
			return BeginResult{
				Replay:      true,
				ResourceID:  *record.ResourceID,
				ProcessedAt: record.CreatedAt,
			}, nil
		}
		if record.ResourceID == nil && !record.Expired(now) {
			g.logger.Warn("discarding dangling idempotency record",
				zap.String("key", key), zap.String("resource_type", resourceType))
		}
		if err := g.records.Delete(ctx, key, resourceType); err != nil {
			return BeginResult{}, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		// no prior record
	default:
		return BeginResult{}, err
	}

	now := g.clock.Now()
	record = &domain.IdempotencyRecord{
		Key:          key,
		ResourceType: resourceType,
		ExpiresAt:    now.Add(g.ttl),
	}
	if err := g.records.Insert(ctx, record); err != nil {
		if errors.Is(err, repository.ErrKeyReserved) {
			return BeginResult{}, apperrors.NewConflict("request with this idempotency key is already in flight", nil)
		}
		return BeginResult{}, err
	}
	return BeginResult{}, nil
}

// Complete backfills the created resource id after the guarded operation
// succeeds. If the backfill itself fails the record is deleted rather
// than left dangling: the next submission re-executes instead of
// replaying a record with no outcome.
func (g *IdempotencyGuard) Complete(ctx context.Context, key, resourceType, resourceID string) {
	if err := g.records.SetResourceID(ctx, key, resourceType, resourceID); err != nil {
		g.logger.Error("idempotency backfill failed, dropping record",
			zap.String("key", key),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err))
		g.Abort(ctx, key, resourceType)
	}
}

// Abort releases a reserved key after the guarded operation failed so
// the caller may retry with the same key.
func (g *IdempotencyGuard) Abort(ctx context.Context, key, resourceType string) {
	if err := g.records.Delete(ctx, key, resourceType); err != nil {
		g.logger.Error("idempotency record delete failed",
			zap.String("key", key),
			zap.String("resource_type", resourceType),
			zap.Error(err))
	}
}

// PurgeExpired removes records past their TTL. Runs from the periodic
// cleanup job; Begin also deletes lazily on touch.
func (g *IdempotencyGuard) PurgeExpired(ctx context.Context) (int64, error) {
	return g.records.DeleteExpired(ctx, g.clock.Now())
}
