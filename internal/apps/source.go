package apps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/radudiaconu0/sockudo/internal/adapter/metrics"
	"github.com/radudiaconu0/sockudo/internal/domain"
	"github.com/radudiaconu0/sockudo/internal/platform/retry"
)

// Source loads app records from a backing store.
type Source interface {
	Name() string
	LoadApps(ctx context.Context) ([]domain.App, error)
}

// StaticSource reads apps from a JSON file, or serves a single default app
// when no file is configured.
type StaticSource struct {
	File    string
	Default domain.App
}

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) LoadApps(_ context.Context) ([]domain.App, error) {
	if s.File == "" {
		return []domain.App{s.Default}, nil
	}

	data, err := os.ReadFile(s.File)
	if err != nil {
		return nil, fmt.Errorf("read apps file: %w", err)
	}
	var records []domain.App
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &retry.PermanentError{Err: fmt.Errorf("parse apps file %s: %w", s.File, err)}
	}
	return records, nil
}

// DefaultLoadPolicy retries transient backend failures during startup.
var DefaultLoadPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// Load reads all records from src with retries and builds a Registry.
// policy.Clock times the load as well as the backoff. m may be nil.
func Load(ctx context.Context, src Source, policy retry.Policy, m *metrics.AppSourceMetrics) (*Registry, error) {
	if policy.Clock == nil {
		policy.Clock = clockwork.NewRealClock()
	}
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			slog.WarnContext(ctx, "App source load failed, retrying", "source", src.Name(), "attempt", attempt, "backoff", backoff, "error", err)
		}
	}

	start := policy.Clock.Now()
	records, err := retry.Do(ctx, policy, classifyLoadError, src.LoadApps)
	if m != nil {
		m.LoadDuration.WithLabelValues(src.Name()).Observe(policy.Clock.Since(start).Seconds())
	}
	if err != nil {
		countLoad(m, src.Name(), "error")
		return nil, fmt.Errorf("load apps from %s: %w", src.Name(), err)
	}

	registry, err := NewRegistry(records)
	if err != nil {
		countLoad(m, src.Name(), "invalid")
		return nil, fmt.Errorf("load apps from %s: %w", src.Name(), err)
	}

	countLoad(m, src.Name(), "success")
	if m != nil {
		m.AppsLoaded.Set(float64(registry.Len()))
	}
	slog.InfoContext(ctx, "Apps loaded", "source", src.Name(), "apps", registry.Len(), "records", len(records))
	return registry, nil
}

func classifyLoadError(err error) retry.Action {
	if _, ok := errors.AsType[*retry.PermanentError](err); ok {
		return retry.Stop
	}
	return retry.RetryAll(err)
}

func countLoad(m *metrics.AppSourceMetrics, source, result string) {
	if m != nil {
		m.Loads.WithLabelValues(source, result).Inc()
	}
}
