package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/radudiaconu0/sockudo/internal/domain"
)

const appIndexKey = "sockudo:apps"

// AppStore keeps app records as JSON strings under sockudo:app:<id>, indexed
// by the sockudo:apps set.
type AppStore struct {
	rdb goredis.Cmdable
}

func NewAppStore(rdb goredis.Cmdable) *AppStore {
	return &AppStore{rdb: rdb}
}

func (s *AppStore) Name() string { return "redis" }

// LoadApps returns every indexed record ordered by id. Index entries whose
// record is missing or unreadable are skipped with a warning.
func (s *AppStore) LoadApps(ctx context.Context) ([]domain.App, error) {
	ids, err := s.rdb.SMembers(ctx, appIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read app index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = appKey(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read app records: %w", err)
	}

	apps := make([]domain.App, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			slog.WarnContext(ctx, "App record missing from redis", "app_id", ids[i])
			continue
		}
		var app domain.App
		if err := json.Unmarshal([]byte(raw), &app); err != nil {
			slog.WarnContext(ctx, "Failed to decode app record", "app_id", ids[i], "error", err)
			continue
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Save writes the record and its index entry in one transaction.
func (s *AppStore) Save(ctx context.Context, app domain.App) error {
	encoded, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to encode app %q: %w", app.ID, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, appKey(app.ID), encoded, 0)
		pipe.SAdd(ctx, appIndexKey, app.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save app %q: %w", app.ID, err)
	}
	return nil
}

// Delete removes the record and its index entry.
func (s *AppStore) Delete(ctx context.Context, appID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, appKey(appID))
		pipe.SRem(ctx, appIndexKey, appID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete app %q: %w", appID, err)
	}
	return nil
}

// Ping is used by the readiness probe.
func (s *AppStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func appKey(appID string) string {
	return "sockudo:app:" + appID
}
