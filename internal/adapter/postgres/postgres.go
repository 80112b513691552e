package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"

	"github.com/radudiaconu0/sockudo/internal/adapter/metrics"
)

const (
	applicationName = "sockudo"
	schemaTable     = "public.schema_version"

	// 0x736f636b7564 is "sockud" in ASCII.
	migrationLockID = 0x736f636b7564
	unlockTimeout   = 5 * time.Second
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// poolConfig parses databaseURL and tags every session with the server's
// application_name. Queries are traced into m when it is not nil.
func poolConfig(databaseURL string, m *metrics.StoreMetrics) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if m != nil {
		cfg.ConnConfig.Tracer = NewMetricsTracer(m)
	}
	return cfg, nil
}

// Connect opens the app-store pool and pings it once.
func Connect(ctx context.Context, databaseURL string, m *metrics.StoreMetrics) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, m)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("Connected to app store",
		"backend", backendName,
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"tls", cfg.ConnConfig.TLSConfig != nil,
		"max_conns", cfg.MaxConns)
	return pool, nil
}

// RunMigrationsWithLock brings the apps schema up to date. Server instances
// starting together serialize on a session advisory lock.
func RunMigrationsWithLock(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()

	return withAdvisoryLock(ctx, conn.Conn(), migrationLockID, func() error {
		return migrateSchema(ctx, conn.Conn())
	})
}

// withAdvisoryLock runs fn while conn holds the session lock id. The unlock
// runs on a fresh context so a cancelled ctx cannot leak the lock.
func withAdvisoryLock(ctx context.Context, conn *pgx.Conn, id int64, fn func() error) error {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", id); err != nil {
		return fmt.Errorf("acquire advisory lock %d: %w", id, err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", id); err != nil {
			slog.Error("Failed to release advisory lock", "lock_id", id, "error", err)
		}
	}()
	return fn()
}

func migrateSchema(ctx context.Context, conn *pgx.Conn) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewMigrator(ctx, conn, schemaTable)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.LoadMigrations(sub); err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	from, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	target := int32(len(m.Migrations))
	if from == target {
		slog.DebugContext(ctx, "App store schema up to date", "version", from)
		return nil
	}

	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", from, target, err)
	}
	slog.InfoContext(ctx, "Migrated app store schema", "from", from, "to", target)
	return nil
}
