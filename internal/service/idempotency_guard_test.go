package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kawal234/HelpDeskMIni/internal/clock"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

func newGuard(t *testing.T) (*IdempotencyGuard, *fakeIdempotencyRepo, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	repo := newFakeIdempotencyRepo()
	return NewIdempotencyGuard(repo, 24*time.Hour, clk, zap.NewNop()), repo, clk
}

func TestGuardBeginCompleteReplay(t *testing.T) {
	guard, _, _ := newGuard(t)
	ctx := context.Background()

	begin, err := guard.Begin(ctx, "k1", ResourceTypeTicket)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if begin.Replay {
		t.Fatal("fresh key reported as replay")
	}

	guard.Complete(ctx, "k1", ResourceTypeTicket, "ticket-9")

	replay, err := guard.Begin(ctx, "k1", ResourceTypeTicket)
	if err != nil {
		t.Fatalf("replay begin: %v", err)
	}
	if !replay.Replay || replay.ResourceID != "ticket-9" {
		t.Fatalf("replay = %+v, want completed outcome ticket-9", replay)
	}
}

func TestGuardKeysScopedByResourceType(t *testing.T) {
	guard, _, _ := newGuard(t)
	ctx := context.Background()

	if _, err := guard.Begin(ctx, "shared", ResourceTypeTicket); err != nil {
		t.Fatalf("ticket begin: %v", err)
	}
	guard.Complete(ctx, "shared", ResourceTypeTicket, "ticket-1")

	// The same key for a different resource type is an independent slot.
	begin, err := guard.Begin(ctx, "shared", ResourceTypeUser)
	if err != nil {
		t.Fatalf("user begin: %v", err)
	}
	if begin.Replay {
		t.Fatal("key replayed across resource types")
	}
}

func TestGuardConcurrentReserveConflicts(t *testing.T) {
	guard, repo, clk := newGuard(t)
	ctx := context.Background()

	// A racing request reserved the key between this request's read and
	// its insert.
	if err := repo.Insert(ctx, &domain.IdempotencyRecord{
		Key:          "hot",
		ResourceType: ResourceTypeTicket,
		ExpiresAt:    clk.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.missOnGet = true

	_, err := guard.Begin(ctx, "hot", ResourceTypeTicket)
	assertCode(t, err, "CONFLICT")
}

func TestGuardDanglingRecordReleased(t *testing.T) {
	guard, repo, clk := newGuard(t)
	ctx := context.Background()

	// Reserved but never completed, e.g. the process died mid-operation.
	if err := repo.Insert(ctx, &domain.IdempotencyRecord{
		Key:          "stuck",
		ResourceType: ResourceTypeTicket,
		ExpiresAt:    clk.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	begin, err := guard.Begin(ctx, "stuck", ResourceTypeTicket)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if begin.Replay {
		t.Fatal("dangling record must not replay a missing outcome")
	}
}

func TestGuardExpiredRecordReleased(t *testing.T) {
	guard, repo, clk := newGuard(t)
	ctx := context.Background()

	if _, err := guard.Begin(ctx, "k1", ResourceTypeTicket); err != nil {
		t.Fatalf("begin: %v", err)
	}
	guard.Complete(ctx, "k1", ResourceTypeTicket, "ticket-1")

	clk.Advance(25 * time.Hour)
	begin, err := guard.Begin(ctx, "k1", ResourceTypeTicket)
	if err != nil {
		t.Fatalf("begin after expiry: %v", err)
	}
	if begin.Replay {
		t.Fatal("expired record replayed")
	}
	if len(repo.records) != 1 {
		t.Errorf("ledger holds %d records, want the fresh reservation only", len(repo.records))
	}
}

func TestGuardAbortAllowsRetry(t *testing.T) {
	guard, repo, _ := newGuard(t)
	ctx := context.Background()

	if _, err := guard.Begin(ctx, "k1", ResourceTypeTicket); err != nil {
		t.Fatalf("begin: %v", err)
	}
	guard.Abort(ctx, "k1", ResourceTypeTicket)
	if len(repo.records) != 0 {
		t.Fatal("abort left the record behind")
	}

	begin, err := guard.Begin(ctx, "k1", ResourceTypeTicket)
	if err != nil {
		t.Fatalf("retry begin: %v", err)
	}
	if begin.Replay {
		t.Fatal("aborted key replayed")
	}
}

func TestGuardCompleteBackfillFailureDropsRecord(t *testing.T) {
	guard, repo, _ := newGuard(t)
	ctx := context.Background()

	if _, err := guard.Begin(ctx, "k1", ResourceTypeTicket); err != nil {
		t.Fatalf("begin: %v", err)
	}
	repo.failSetResource = errors.New("write lost")
	guard.Complete(ctx, "k1", ResourceTypeTicket, "ticket-1")

	if len(repo.records) != 0 {
		t.Fatal("failed backfill left a record that would replay with no outcome")
	}
}

func TestGuardPurgeExpired(t *testing.T) {
	guard, repo, clk := newGuard(t)
	ctx := context.Background()

	if _, err := guard.Begin(ctx, "old", ResourceTypeTicket); err != nil {
		t.Fatalf("begin old: %v", err)
	}
	clk.Advance(25 * time.Hour)
	if _, err := guard.Begin(ctx, "new", ResourceTypeTicket); err != nil {
		t.Fatalf("begin new: %v", err)
	}

	purged, err := guard.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d, want 1", purged)
	}
	if _, ok := repo.records[idemKey("new", ResourceTypeTicket)]; !ok {
		t.Error("purge removed an unexpired record")
	}
}
