package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/livecart/internal/adapter/httpserver"
	"github.com/pscheid92/livecart/internal/adapter/livekit"
	"github.com/pscheid92/livecart/internal/adapter/metrics"
	"github.com/pscheid92/livecart/internal/adapter/postgres"
	"github.com/pscheid92/livecart/internal/adapter/redis"
	"github.com/pscheid92/livecart/internal/adapter/websocket"
	"github.com/pscheid92/livecart/internal/app"
	"github.com/pscheid92/livecart/internal/platform/config"
	"github.com/pscheid92/livecart/internal/platform/logging"
	"github.com/pscheid92/livecart/internal/platform/retry"
	"github.com/pscheid92/livecart/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	connectAttemptTimeout = 5 * time.Second
	migrationTimeout      = time.Minute
	shutdownTimeout       = 15 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func startupPolicy(dependency string) retry.Policy {
	p := retry.Startup
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency not ready, retrying", "dependency", dependency, "attempt", attempt, "backoff", backoff, "error", err)
	}
	return p
}

func setupDB(ctx context.Context, cfg *config.Config, m *metrics.DBMetrics) *pgxpool.Pool {
	pool, err := retry.Do(ctx, startupPolicy("postgres"), retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, connectAttemptTimeout)
		defer cancel()
		return postgres.Connect(attemptCtx, cfg.DatabaseURL, m)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	if err := postgres.RunMigrationsWithLock(migrateCtx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	hooks := []goredis.Hook{redis.NewMetricsHook(m), redis.NewCircuitBreakerHook(m)}

	client, err := retry.Do(ctx, startupPolicy("redis"), retry.Transient, func(ctx context.Context) (*goredis.Client, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, connectAttemptTimeout)
		defer cancel()
		return redis.NewClient(attemptCtx, cfg.RedisURL, hooks...)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupNode(cfg *config.Config, m *metrics.WebSocketMetrics) *centrifuge.Node {
	node, err := websocket.NewNode(m, cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create centrifuge node", "error", err)
		os.Exit(1)
	}

	if cfg.WebSocketRedisBroker {
		if err := websocket.SetupRedis(node, cfg.RedisURL); err != nil {
			slog.Error("Failed to set up centrifuge Redis broker", "error", err)
			os.Exit(1)
		}
	}

	if err := node.Run(); err != nil {
		slog.Error("Failed to run centrifuge node", "error", err)
		os.Exit(1)
	}
	return node
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "build", version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()

	pool := setupDB(ctx, cfg, metrics.NewDBMetrics(reg))
	defer pool.Close()

	redisClient := setupRedis(ctx, cfg, metrics.NewRedisMetrics(reg))
	defer func() { _ = redisClient.Close() }()

	wsMetrics := metrics.NewWebSocketMetrics(reg)
	node := setupNode(cfg, wsMetrics)

	clock := clockwork.NewRealClock()
	sessions := postgres.NewSessionRepo(pool)
	markers := redis.NewMarkerStore(redisClient, cfg.MarkerTTL)
	deduper := redis.NewDeliveryDeduper(redisClient, cfg.WebhookDedupTTL)
	publisher := websocket.NewPublisher(node, wsMetrics)

	providerMetrics := metrics.NewProviderMetrics(reg)
	egress := livekit.NewEgressGateway(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.EgressStopTimeout, providerMetrics)

	scheduler := app.NewTimerScheduler(clock)
	coordinator := app.NewCoordinator(sessions, markers, egress, publisher, scheduler, clock, cfg.DebounceWindow, metrics.NewLifecycleMetrics(reg))
	appSvc := app.NewService(sessions, coordinator)

	webhookHandler := livekit.NewWebhookHandler(livekit.NewVerifier(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret), coordinator, deduper, providerMetrics)
	websocketHandler := centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, cfg.AllowedOrigins(), !cfg.IsProduction()),
	})

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}
	handlers := httpserver.Handlers{
		Webhook:   webhookHandler,
		WebSocket: websocketHandler,
		Metrics:   metrics.Handler(reg),
	}
	srv := httpserver.NewServer(cfg, appSvc, handlers, metrics.NewHTTPMetrics(reg), healthChecks)

	slog.Info("Lifecycle coordinator ready", "debounce_window", cfg.DebounceWindow, "marker_ttl", cfg.MarkerTTL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		// Stop timers before the node so running reconciliations can still publish.
		scheduler.Stop()
		if err := node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Centrifuge shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
