// Package sqlite provides a SQLite-backed app source for single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/radudiaconu0/sockudo/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS apps (
	id                             TEXT PRIMARY KEY,
	key                            TEXT NOT NULL UNIQUE,
	secret                         TEXT NOT NULL DEFAULT '',
	enabled                        INTEGER NOT NULL DEFAULT 1,
	max_connections                INTEGER,
	enable_client_messages         INTEGER NOT NULL DEFAULT 1,
	max_backend_events_per_second  INTEGER,
	max_client_events_per_second   INTEGER,
	max_read_requests_per_minute   INTEGER,
	webhooks                       TEXT,
	max_presence_member_size_in_kb INTEGER,
	max_channel_name_length        INTEGER,
	max_event_channel_at_once      INTEGER,
	max_event_name_length          INTEGER,
	max_event_payload_in_kb        INTEGER,
	max_event_batch_size           INTEGER,
	enable_user_authentication     INTEGER NOT NULL DEFAULT 1,
	has_client_event_webhooks      INTEGER NOT NULL DEFAULT 0,
	has_channel_occupied_webhooks  INTEGER NOT NULL DEFAULT 0,
	has_channel_vacated_webhooks   INTEGER NOT NULL DEFAULT 0,
	has_member_added_webhooks      INTEGER NOT NULL DEFAULT 0,
	has_member_removed_webhooks    INTEGER NOT NULL DEFAULT 0,
	has_cache_missed_webhooks      INTEGER NOT NULL DEFAULT 0
)`

const appColumns = `id, key, secret, enabled, max_connections, enable_client_messages,
	max_backend_events_per_second, max_client_events_per_second, max_read_requests_per_minute,
	webhooks, max_presence_member_size_in_kb, max_channel_name_length, max_event_channel_at_once,
	max_event_name_length, max_event_payload_in_kb, max_event_batch_size, enable_user_authentication,
	has_client_event_webhooks, has_channel_occupied_webhooks, has_channel_vacated_webhooks,
	has_member_added_webhooks, has_member_removed_webhooks, has_cache_missed_webhooks`

// Store reads and writes app records in a SQLite file.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and creates the apps table if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create apps table: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Name() string { return "sqlite" }

// LoadApps returns every record, enabled or not, ordered by id.
func (s *Store) LoadApps(ctx context.Context) ([]domain.App, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT "+appColumns+" FROM apps ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query apps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var apps []domain.App
	for rows.Next() {
		var (
			app      domain.App
			webhooks sql.NullString
		)
		err := rows.Scan(
			&app.ID, &app.Key, &app.Secret, &app.Enabled, &app.MaxConnections, &app.EnableClientMessages,
			&app.MaxBackendEventsPerSecond, &app.MaxClientEventsPerSecond, &app.MaxReadRequestsPerMinute,
			&webhooks, &app.MaxPresenceMemberSizeInKB, &app.MaxChannelNameLength, &app.MaxEventChannelsAtOnce,
			&app.MaxEventNameLength, &app.MaxEventPayloadInKB, &app.MaxEventBatchSize, &app.EnableUserAuthentication,
			&app.HasClientEventWebhooks, &app.HasChannelOccupiedWebhooks, &app.HasChannelVacatedWebhooks,
			&app.HasMemberAddedWebhooks, &app.HasMemberRemovedWebhooks, &app.HasCacheMissedWebhooks,
		)
		if err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		if webhooks.Valid && webhooks.String != "" {
			app.Webhooks = []byte(webhooks.String)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate apps: %w", err)
	}
	return apps, nil
}

// Save inserts or replaces an app record.
func (s *Store) Save(ctx context.Context, app domain.App) error {
	var webhooks sql.NullString
	if len(app.Webhooks) > 0 {
		webhooks = sql.NullString{String: string(app.Webhooks), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `INSERT OR REPLACE INTO apps (`+appColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.Key, app.Secret, app.Enabled, app.MaxConnections, app.EnableClientMessages,
		app.MaxBackendEventsPerSecond, app.MaxClientEventsPerSecond, app.MaxReadRequestsPerMinute,
		webhooks, app.MaxPresenceMemberSizeInKB, app.MaxChannelNameLength, app.MaxEventChannelsAtOnce,
		app.MaxEventNameLength, app.MaxEventPayloadInKB, app.MaxEventBatchSize, app.EnableUserAuthentication,
		app.HasClientEventWebhooks, app.HasChannelOccupiedWebhooks, app.HasChannelVacatedWebhooks,
		app.HasMemberAddedWebhooks, app.HasMemberRemovedWebhooks, app.HasCacheMissedWebhooks,
	)
	if err != nil {
		return fmt.Errorf("save app %q: %w", app.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, appID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM apps WHERE id = ?`, appID); err != nil {
		return fmt.Errorf("delete app %q: %w", appID, err)
	}
	return nil
}

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}
