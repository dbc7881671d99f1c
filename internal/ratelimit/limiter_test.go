package ratelimit

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/kawal234/HelpDeskMIni/pkg/util"
)

type memoryCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (s *memoryCounterStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[string]int64)
	}
	s.counts[key]++
	return s.counts[key], nil
}

func newLimiterApp(store CounterStore, max int) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	limiter := NewLimiter(store, zap.NewNop())
	app.Use(limiter.Handle("test", max, time.Minute))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestLimiterAllowsUnderQuota(t *testing.T) {
	app := newLimiterApp(&memoryCounterStore{}, 3)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, resp.StatusCode)
		}
	}
}

func TestLimiterRejectsOverQuota(t *testing.T) {
	app := newLimiterApp(&memoryCounterStore{}, 2)

	var last int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		last = resp.StatusCode
	}
	if last != fiber.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last)
	}
}

func TestLimiterDegradesOpenOnStoreFailure(t *testing.T) {
	app := newLimiterApp(&memoryCounterStore{err: errors.New("redis down")}, 1)

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d status = %d, counter outage must not block traffic", i, resp.StatusCode)
		}
	}
}

func TestLimiterDisabledWhenMaxZero(t *testing.T) {
	store := &memoryCounterStore{}
	app := newLimiterApp(store, 0)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(store.counts) != 0 {
		t.Error("disabled limiter still counted requests")
	}
}
