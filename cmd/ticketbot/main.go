package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/guild-ticket-bot/internal/api/gateway"
	httptransport "github.com/spec-kit/guild-ticket-bot/internal/api/http"
	"github.com/spec-kit/guild-ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/guild-ticket-bot/internal/auth"
	"github.com/spec-kit/guild-ticket-bot/internal/cache"
	"github.com/spec-kit/guild-ticket-bot/internal/config"
	"github.com/spec-kit/guild-ticket-bot/internal/events"
	"github.com/spec-kit/guild-ticket-bot/internal/observability"
	"github.com/spec-kit/guild-ticket-bot/internal/persistence"
	"github.com/spec-kit/guild-ticket-bot/internal/platform/discord"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
	"github.com/spec-kit/guild-ticket-bot/internal/scheduler"
	"github.com/spec-kit/guild-ticket-bot/internal/service"
	"github.com/spec-kit/guild-ticket-bot/internal/transcript"
	"github.com/spec-kit/guild-ticket-bot/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		tickets repository.TicketRepository
		configs repository.TenantConfigRepository
		history repository.TicketHistoryRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		tickets = repository.NewTicketRepository(pool)
		configs = repository.NewTenantConfigRepository(pool)
		history = repository.NewTicketHistoryRepository(pool)
	} else {
		logger.Warn("running with in-memory storage; tickets are lost on restart")
		tickets = repository.NewMemoryTicketRepository()
		configs = repository.NewMemoryTenantConfigRepository()
		history = repository.NewMemoryTicketHistoryRepository()
	}

	guard := repository.NewMemoryActionGuard()
	var staffPings repository.StaffPingStore = repository.NewMemoryStaffPingStore()
	if redis.Available() {
		guard = repository.NewRedisActionGuard(redis.Client, "ticketbot:interaction:")
		staffPings = repository.NewRedisStaffPingStore(redis.Client, "ticketbot:staff-ping:")
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	client := discord.NewClient(session)
	gw := discord.NewGateway(session, logger)

	configCache := cache.NewTenantConfigCache(configs, cfg.Lifecycle.ConfigRefreshInterval, logger, metrics)
	sched := scheduler.New(logger, metrics.SetScheduledActions)
	defer sched.Stop()

	dispatcher := events.NewInMemoryDispatcher()
	auditService := service.NewAuditService(dispatcher, history, logger, metrics)
	worker.StartAuditWorker(auditService)

	assets := service.Assets{IconURL: cfg.Assets.IconURL, BannerURL: cfg.Assets.BannerURL}
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Tickets:     tickets,
		Configs:     configCache,
		Platform:    client,
		Scheduler:   sched,
		Transcripts: transcript.NewGenerator(client, transcript.DefaultMaxMessages),
		Dispatcher:  dispatcher,
		StaffPings:  staffPings,
		Logger:      logger,
		Assets:      assets,
		Settings: service.LifecycleSettings{
			ActionDelay:       cfg.Lifecycle.ActionDelay,
			InactivityTimeout: cfg.Lifecycle.InactivityTimeout,
			ClosedRetention:   cfg.Lifecycle.ClosedRetention,
			PingCooldown:      cfg.Lifecycle.PingCooldown,
		},
	})
	sweeper := service.NewSweeperService(tickets, lifecycle, cfg.Lifecycle.SweepRatePerSecond, metrics, logger)
	syncService := service.NewSyncService(service.SyncDependencies{
		Configs:  configs,
		Tickets:  tickets,
		History:  history,
		Cache:    configCache,
		Platform: client,
		Assets:   assets,
		Logger:   logger,
	})
	authService := service.NewAuthService(cfg.Auth)

	router := gateway.NewRouter(lifecycle, syncService, guard, metrics, logger, gateway.Options{
		DedupeTTL:      cfg.Lifecycle.InteractionDedupeTTL,
		BootstrapDelay: cfg.Lifecycle.BootstrapDelay,
	})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.ReadinessCheck{
			"postgres": optional(pg.Ping, persistence.ErrPostgresDisabled),
			"redis":    optional(redis.Ping, persistence.ErrRedisDisabled),
			"discord": func(context.Context) error {
				if !gw.Ready() {
					return errors.New("gateway not ready")
				}
				return nil
			},
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Tenants:        handlers.NewTenantsHandler(syncService, auditService),
		Sweeps:         handlers.NewSweepsHandler(sweeper),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("admin api listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	g.Go(func() error {
		return gw.Run(gctx, router)
	})
	g.Go(func() error {
		return worker.StartSweepWorker(gctx, logger, cfg.Lifecycle, configCache, sweeper)
	})

	if err := g.Wait(); err != nil {
		logger.Error("ticket bot stopped with error", zap.Error(err))
		return
	}
	logger.Info("ticket bot stopped")
}

// optional maps a dependency's "not configured" error onto the handler's
// disabled marker so readiness does not fail on it.
func optional(ping func(context.Context) error, disabled error) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		err := ping(ctx)
		if errors.Is(err, disabled) {
			return handlers.ErrDependencyDisabled
		}
		return err
	}
}
