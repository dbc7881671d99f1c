package sla

import (
	"context"
	"time"

	"github.com/kawal234/HelpDeskMIni/internal/clock"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

// BreachStore is the slice of ticket persistence the evaluator and the
// sweep need. MarkBreached must be conditional at the store layer: it
// flips sla_breached only when it is still false, the due date has
// elapsed, and the status is not terminal, so concurrent evaluation
// converges to the same monotonic state.
type BreachStore interface {
	FindSLABreached(ctx context.Context, now time.Time) ([]domain.Ticket, error)
	MarkSLABreached(ctx context.Context, ticketID string, now time.Time) (bool, error)
}

// Evaluator decides SLA breach for a single ticket. It is invoked
// explicitly by the write path after every update and by the periodic
// sweep; reads never trigger it.
type Evaluator struct {
	store BreachStore
	clock clock.Clock
}

// NewEvaluator constructs the evaluator.
func NewEvaluator(store BreachStore, clk clock.Clock) *Evaluator {
	return &Evaluator{store: store, clock: clk}
}

// Evaluate marks the ticket breached when its deadline has elapsed while
// unresolved. It mutates the passed ticket on success and reports whether
// a new breach was recorded. Idempotent: an already-breached or terminal
// ticket is a no-op.
func (e *Evaluator) Evaluate(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	if ticket.SLABreached || ticket.Status.Terminal() {
		return false, nil
	}
	now := e.clock.Now()
	if !now.After(ticket.SLADueDate) {
		return false, nil
	}
	marked, err := e.store.MarkSLABreached(ctx, ticket.ID, now)
	if err != nil {
		return false, err
	}
	if marked {
		ticket.SLABreached = true
	}
	return marked, nil
}
