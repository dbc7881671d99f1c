package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kawal234/HelpDeskMIni/internal/service"
)

// CleanupWorker periodically purges expired idempotency records.
type CleanupWorker struct {
	scheduler *cron.Cron
	guard     *service.IdempotencyGuard
	logger    *zap.Logger
}

// NewCleanupWorker creates a worker running the guard purge on the given
// cron schedule, e.g. "@every 1h".
func NewCleanupWorker(guard *service.IdempotencyGuard, schedule string, logger *zap.Logger) (*CleanupWorker, error) {
	w := &CleanupWorker{
		scheduler: cron.New(),
		guard:     guard,
		logger:    logger,
	}
	if _, err := w.scheduler.AddFunc(schedule, w.run); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Start launches the scheduler in its own goroutine.
func (w *CleanupWorker) Start() {
	w.scheduler.Start()
	w.logger.Info("idempotency cleanup worker started")
}

// Stop halts the scheduler and waits for a running purge to finish.
func (w *CleanupWorker) Stop() {
	ctx := w.scheduler.Stop()
	<-ctx.Done()
	w.logger.Info("idempotency cleanup worker stopped")
}

func (w *CleanupWorker) run() {
	purged, err := w.guard.PurgeExpired(context.Background())
	if err != nil {
		w.logger.Error("idempotency purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		w.logger.Info("purged expired idempotency records", zap.Int64("count", purged))
	}
}
