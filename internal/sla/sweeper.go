package sla

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kawal234/HelpDeskMIni/internal/clock"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

// Sweeper periodically scans for tickets whose deadline elapsed while
// nobody touched them and records the breach. It is owned by the process
// lifecycle: started once, stopped deterministically on shutdown.
// Overlap with request-triggered evaluation is harmless because
// MarkSLABreached is conditional at the store.
type Sweeper struct {
	store    BreachStore
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger

	onBreach func(context.Context, domain.Ticket)

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// OnBreach registers a hook invoked once per newly recorded breach. Set
// before Start.
func (s *Sweeper) OnBreach(fn func(context.Context, domain.Ticket)) {
	s.onBreach = fn
}

// NewSweeper constructs a sweeper with the given scan interval.
func NewSweeper(store BreachStore, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{store: store, clock: clk, interval: interval, logger: logger}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a
// no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(runCtx)
			case <-runCtx.Done():
				return
			}
		}
	}()
	s.logger.Info("sla sweeper started", zap.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if !wasRunning || cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("sla sweeper stopped")
}

// Running reports whether the sweep loop is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce performs a single sweep pass. Exported so the loop and tests
// share the same code path.
func (s *Sweeper) RunOnce(ctx context.Context) {
	now := s.clock.Now()
	tickets, err := s.store.FindSLABreached(ctx, now)
	if err != nil {
		s.logger.Error("sla sweep query failed", zap.Error(err))
		return
	}
	if len(tickets) == 0 {
		return
	}
	marked := 0
	for i := range tickets {
		ok, err := s.store.MarkSLABreached(ctx, tickets[i].ID, now)
		if err != nil {
			s.logger.Error("sla breach mark failed",
				zap.String("ticket_id", tickets[i].ID), zap.Error(err))
			continue
		}
		if ok {
			marked++
			if s.onBreach != nil {
				tickets[i].SLABreached = true
				s.onBreach(ctx, tickets[i])
			}
		}
	}
	s.logger.Info("sla sweep complete",
		zap.Int("candidates", len(tickets)), zap.Int("newly_breached", marked))
}
