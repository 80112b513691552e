package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/radudiaconu0/sockudo/internal/adapter/postgres"
	"github.com/radudiaconu0/sockudo/internal/adapter/redis"
	"github.com/radudiaconu0/sockudo/internal/adapter/sqlite"
	"github.com/radudiaconu0/sockudo/internal/apps"
	"github.com/radudiaconu0/sockudo/internal/domain"
)

const connectTimeout = 10 * time.Second

// appStore is implemented by every persistent app source.
type appStore interface {
	LoadApps(ctx context.Context) ([]domain.App, error)
	Save(ctx context.Context, app domain.App) error
	Delete(ctx context.Context, appID string) error
}

func main() {
	var (
		file    = flag.String("file", os.Getenv("APPS_FILE"), "JSON file with app records (or set APPS_FILE env)")
		target  = flag.String("target", os.Getenv("APP_SOURCE"), "Destination: postgres, redis or sqlite (or set APP_SOURCE env)")
		dsn     = flag.String("dsn", "", "Destination URL or path (defaults to DATABASE_URL, REDIS_URL or SQLITE_PATH)")
		dryRun  = flag.Bool("dry-run", false, "Dry run mode (validate only, don't write)")
		prune   = flag.Bool("prune", false, "Delete apps in the destination that are not in the file")
		verbose = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *file == "" {
		log.Fatal("Apps file required (--file or APPS_FILE env)")
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	ctx := context.Background()
	records, err := apps.StaticSource{File: *file}.LoadApps(ctx)
	if err != nil {
		log.Fatalf("Failed to read apps: %v", err)
	}
	if _, err := apps.NewRegistry(records); err != nil {
		log.Fatalf("Invalid apps file: %v", err)
	}

	if *dryRun {
		slog.Info("Dry run, nothing written", "records", len(records))
		return
	}

	destination := resolveDSN(*target, *dsn)
	store, closeFn, err := openTarget(ctx, *target, destination)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *target, err)
	}
	defer closeFn()
	slog.Info("Connected", "target", *target, "dsn", sanitizeURL(destination))

	if err := importApps(ctx, store, records); err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	if *prune {
		if err := pruneApps(ctx, store, records); err != nil {
			log.Fatalf("Prune failed: %v", err)
		}
	}
}

func resolveDSN(target, dsn string) string {
	if dsn != "" {
		return dsn
	}
	switch target {
	case "postgres":
		return os.Getenv("DATABASE_URL")
	case "redis":
		return os.Getenv("REDIS_URL")
	case "sqlite":
		return os.Getenv("SQLITE_PATH")
	default:
		return ""
	}
}

func openTarget(ctx context.Context, target, dsn string) (appStore, func(), error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("no destination configured for target %q", target)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch target {
	case "postgres":
		pool, err := postgres.Connect(ctx, dsn, nil)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewAppRepo(pool), pool.Close, nil
	case "redis":
		client, err := redis.NewClient(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewAppStore(client), func() { _ = client.Close() }, nil
	case "sqlite":
		store, err := sqlite.Open(dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown target %q", target)
	}
}

func importApps(ctx context.Context, saver appStore, records []domain.App) error {
	start := time.Now()
	var enabled int

	for _, app := range records {
		if err := saver.Save(ctx, app); err != nil {
			return err
		}
		if app.Enabled {
			enabled++
		}
		slog.Debug("Imported app", "app_id", app.ID, "enabled", app.Enabled)
	}

	slog.Info("Import summary",
		"imported", len(records),
		"enabled", enabled,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// pruneApps deletes every stored app whose id is absent from records.
func pruneApps(ctx context.Context, store appStore, records []domain.App) error {
	keep := make(map[string]struct{}, len(records))
	for _, app := range records {
		keep[app.ID] = struct{}{}
	}

	stored, err := store.LoadApps(ctx)
	if err != nil {
		return fmt.Errorf("list stored apps: %w", err)
	}

	var deleted int
	for _, app := range stored {
		if _, ok := keep[app.ID]; ok {
			continue
		}
		if err := store.Delete(ctx, app.ID); err != nil {
			return err
		}
		deleted++
		slog.Debug("Deleted app", "app_id", app.ID)
	}

	slog.Info("Prune summary", "stored", len(stored), "deleted", deleted)
	return nil
}

// sanitizeURL hides the password of a connection URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
