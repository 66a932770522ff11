package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/grievance-desk/sla-service/internal/api/http"
	"github.com/grievance-desk/sla-service/internal/api/http/handlers"
	"github.com/grievance-desk/sla-service/internal/auth"
	"github.com/grievance-desk/sla-service/internal/config"
	"github.com/grievance-desk/sla-service/internal/escalation"
	"github.com/grievance-desk/sla-service/internal/events"
	"github.com/grievance-desk/sla-service/internal/observability"
	"github.com/grievance-desk/sla-service/internal/persistence"
	"github.com/grievance-desk/sla-service/internal/repository"
	"github.com/grievance-desk/sla-service/internal/service"
	"github.com/grievance-desk/sla-service/internal/sla"
	"github.com/grievance-desk/sla-service/internal/worker"
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

	calendar, err := cfg.SLA.Calendar()
	if err != nil {
		logger.Fatal("invalid working calendar", zap.Error(err))
	}
	policy, err := cfg.SLA.Policy()
	if err != nil {
		logger.Fatal("invalid sla policy", zap.Error(err))
	}
	logger.Info("sla calendar loaded",
		zap.String("timezone", calendar.Location().String()),
		zap.Duration("day_length", calendar.DayLength()),
		zap.Strings("holidays", calendar.Holidays()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	clock := sla.SystemClock

	pool := pg.PoolHandle()
	issueRepo := repository.NewIssueRepository(pool)
	historyRepo := repository.NewIssueHistoryRepository(pool)

	analyticsService := service.NewAnalyticsService(issueRepo, cfg.SLA.AnalyticsCacheTTL(), clock)
	slaService := service.NewSlaService(service.SlaDependencies{
		IssueRepo:  issueRepo,
		Calendar:   calendar,
		Policy:     policy,
		Dispatcher: dispatcher,
		Summaries:  analyticsService,
		Clock:      clock,
		Logger:     logger,
	})
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:   issueRepo,
		HistoryRepo: historyRepo,
		Calendar:    calendar,
		Policy:      policy,
		Dispatcher:  dispatcher,
		Summaries:   analyticsService,
		Clock:       clock,
		Logger:      logger,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	scheduler := escalation.NewScheduler(calendar, policy, issueRepo,
		escalation.WithBatchSize(cfg.SLA.CycleBatchSize),
		escalation.WithWorkers(cfg.SLA.CycleWorkers),
		escalation.WithLogger(logger.Named("scheduler")),
	)
	escalationWorker := worker.NewEscalationWorker(worker.EscalationWorkerConfig{
		Interval: cfg.SLA.CycleInterval(),
		Timeout:  cfg.SLA.CycleTimeout(),
	}, worker.EscalationWorkerDependencies{
		Runner:   scheduler,
		Applier:  slaService,
		Lock:     persistence.NewCycleLease(redis, cfg.SLA.CycleLeaseKey, cfg.SLA.CycleInterval()),
		Recorder: metrics,
		Clock:    clock,
		Logger:   logger,
	})
	escalationWorker.Start(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Issues:          handlers.NewIssuesHandler(issueService),
		Sla:             handlers.NewSlaHandler(slaService, analyticsService, escalationWorker),
		AuthMiddleware:  auth.NewAuthMiddleware(tokens),
		MetricsRegistry: metrics.Registry(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	escalationWorker.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
