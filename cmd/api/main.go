package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/kawal234/HelpDeskMIni/internal/api/http"
	"github.com/kawal234/HelpDeskMIni/internal/api/http/handlers"
	"github.com/kawal234/HelpDeskMIni/internal/auth"
	"github.com/kawal234/HelpDeskMIni/internal/clock"
	"github.com/kawal234/HelpDeskMIni/internal/config"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
	"github.com/kawal234/HelpDeskMIni/internal/events"
	"github.com/kawal234/HelpDeskMIni/internal/observability"
	"github.com/kawal234/HelpDeskMIni/internal/persistence"
	"github.com/kawal234/HelpDeskMIni/internal/ratelimit"
	"github.com/kawal234/HelpDeskMIni/internal/repository"
	"github.com/kawal234/HelpDeskMIni/internal/service"
	"github.com/kawal234/HelpDeskMIni/internal/sla"
	"github.com/kawal234/HelpDeskMIni/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)

	clk := clock.New()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	guard := service.NewIdempotencyGuard(idempotencyRepo, cfg.Idempotency.TTL(), clk, logger)
	slaPolicy := sla.NewPolicy(cfg.SLA)
	evaluator := sla.NewEvaluator(ticketRepo, clk)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		HistoryRepo: historyRepo,
		UserRepo:    userRepo,
		SLAPolicy:   slaPolicy,
		Evaluator:   evaluator,
		Guard:       guard,
		Clock:       clk,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	authService := service.NewAuthService(cfg.Auth, userRepo, guard)
	userService := service.NewUserService(userRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	sweeper := sla.NewSweeper(ticketRepo, clk, cfg.SLA.SweepInterval(), logger)
	sweeper.OnBreach(func(ctx context.Context, ticket domain.Ticket) {
		metrics.RecordSLABreach()
		event := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventSLABreached,
			TicketID:  ticket.ID,
			Timestamp: clk.Now(),
			Payload: events.SLABreachedPayload{
				Priority:   ticket.Priority,
				SLADueDate: ticket.SLADueDate,
			},
		}
		if err := dispatcher.Publish(ctx, event); err != nil {
			logger.Warn("sla breach event publish failed", zap.Error(err))
		}
	})
	sweeper.Start(ctx)
	defer sweeper.Stop()

	cleanup, err := worker.NewCleanupWorker(guard, cfg.Idempotency.PurgeSchedule, logger)
	if err != nil {
		logger.Fatal("failed to init cleanup worker", zap.Error(err))
	}
	cleanup.Start()
	defer cleanup.Stop()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisCounterStore(redis.Client), logger)

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	authHandler := handlers.NewAuthHandler(authService, metrics)
	ticketsHandler := handlers.NewTicketsHandler(ticketService, metrics)
	usersHandler := handlers.NewUsersHandler(userService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Auth:           authHandler,
		Tickets:        ticketsHandler,
		Users:          usersHandler,
		AuthMiddleware: authMiddleware,
		RateLimits:     httptransport.NewRateLimits(limiter, cfg.RateLimit),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
