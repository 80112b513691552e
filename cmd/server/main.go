package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/radudiaconu0/sockudo/internal/adapter/httpserver"
	"github.com/radudiaconu0/sockudo/internal/adapter/local"
	"github.com/radudiaconu0/sockudo/internal/adapter/metrics"
	"github.com/radudiaconu0/sockudo/internal/adapter/postgres"
	"github.com/radudiaconu0/sockudo/internal/adapter/redis"
	"github.com/radudiaconu0/sockudo/internal/adapter/sqlite"
	"github.com/radudiaconu0/sockudo/internal/adapter/websocket"
	"github.com/radudiaconu0/sockudo/internal/apps"
	"github.com/radudiaconu0/sockudo/internal/connection"
	"github.com/radudiaconu0/sockudo/internal/domain"
	"github.com/radudiaconu0/sockudo/internal/ingress"
	"github.com/radudiaconu0/sockudo/internal/namespace"
	"github.com/radudiaconu0/sockudo/internal/platform/config"
	"github.com/radudiaconu0/sockudo/internal/platform/logging"
	"github.com/radudiaconu0/sockudo/internal/platform/version"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// appSource is a loaded backend plus its readiness probe and cleanup.
type appSource struct {
	source apps.Source
	checks []httpserver.HealthCheck
	close  func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func openAppSource(ctx context.Context, cfg *config.Config, storeMetrics *metrics.StoreMetrics) (*appSource, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.AppSource {
	case config.SourcePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, storeMetrics)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		repo := postgres.NewAppRepo(pool)
		return &appSource{
			source: repo,
			checks: []httpserver.HealthCheck{{Name: "postgres", Check: repo.Ping}},
			close:  pool.Close,
		}, nil

	case config.SourceRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewMetricsHook(storeMetrics), redis.NewCircuitBreakerHook(storeMetrics))
		if err != nil {
			return nil, err
		}
		store := redis.NewAppStore(client)
		return &appSource{
			source: store,
			checks: []httpserver.HealthCheck{{Name: "redis", Check: store.Ping}},
			close:  func() { _ = client.Close() },
		}, nil

	case config.SourceSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &appSource{
			source: store,
			checks: []httpserver.HealthCheck{{Name: "sqlite", Check: store.Ping}},
			close:  func() { _ = store.Close() },
		}, nil

	default:
		return &appSource{
			source: apps.StaticSource{
				File:    cfg.AppsFile,
				Default: domain.NewApp(cfg.DefaultAppID, cfg.DefaultAppKey, cfg.DefaultAppSecret),
			},
			close: func() {},
		}, nil
	}
}

func main() {
	showVersion := flag.Bool("version", false, "print build information and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "addr", cfg.Addr(), "app_source", cfg.AppSource, "build", version.Get())

	if err := run(cfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()

	src, err := openAppSource(ctx, cfg, metrics.NewStoreMetrics(reg))
	if err != nil {
		return fmt.Errorf("open app source: %w", err)
	}
	defer src.close()

	registry, err := apps.Load(ctx, src.source, apps.DefaultLoadPolicy, metrics.NewAppSourceMetrics(reg))
	if err != nil {
		return err
	}

	adapter, err := local.New(registry.Apps(),
		namespace.WithMailboxSize(cfg.NamespaceMailboxSize),
		namespace.WithMetrics(metrics.NewNamespaceMetrics(reg)),
	)
	if err != nil {
		return fmt.Errorf("create adapter: %w", err)
	}
	defer adapter.Stop()

	wsHandler := websocket.NewHandler(registry, adapter, connection.NewSocketIDGenerator(), websocket.Config{
		AllowedOrigins:  cfg.Origins(),
		ActivityTimeout: cfg.ActivityTimeout,
		SendBuffer:      cfg.ClientSendBuffer,
		Metrics:         metrics.NewWebSocketMetrics(reg),
		Limits:          websocket.NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst, nil),
	})
	publisher := ingress.New(adapter, metrics.NewPublishMetrics(reg))
	checks := append(src.checks, httpserver.HealthCheck{Name: "namespaces", Check: adapter.Ping})
	srv := httpserver.NewServer(cfg, publisher, adapter, wsHandler, reg, checks)

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

		// Order matters: stop accepting, close sockets while their
		// namespaces can still unregister them, then stop the namespaces.
		err := srv.Shutdown(shutdownCtx)
		wsHandler.Shutdown(shutdownCtx)
		adapter.Stop()
		return err
	})

	return g.Wait()
}
