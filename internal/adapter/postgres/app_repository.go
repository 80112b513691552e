package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radudiaconu0/sockudo/internal/domain"
)

const appColumns = `id, key, secret, enabled, max_connections, enable_client_messages,
	max_backend_events_per_second, max_client_events_per_second, max_read_requests_per_minute,
	webhooks, max_presence_member_size_in_kb, max_channel_name_length, max_event_channel_at_once,
	max_event_name_length, max_event_payload_in_kb, max_event_batch_size, enable_user_authentication,
	has_client_event_webhooks, has_channel_occupied_webhooks, has_channel_vacated_webhooks,
	has_member_added_webhooks, has_member_removed_webhooks, has_cache_missed_webhooks`

type appRow struct {
	ID                         string `db:"id"`
	Key                        string `db:"key"`
	Secret                     string `db:"secret"`
	Enabled                    bool   `db:"enabled"`
	MaxConnections             *int64 `db:"max_connections"`
	EnableClientMessages       bool   `db:"enable_client_messages"`
	MaxBackendEventsPerSecond  *int64 `db:"max_backend_events_per_second"`
	MaxClientEventsPerSecond   *int64 `db:"max_client_events_per_second"`
	MaxReadRequestsPerMinute   *int64 `db:"max_read_requests_per_minute"`
	Webhooks                   []byte `db:"webhooks"`
	MaxPresenceMemberSizeInKB  *int64 `db:"max_presence_member_size_in_kb"`
	MaxChannelNameLength       *int64 `db:"max_channel_name_length"`
	MaxEventChannelsAtOnce     *int64 `db:"max_event_channel_at_once"`
	MaxEventNameLength         *int64 `db:"max_event_name_length"`
	MaxEventPayloadInKB        *int64 `db:"max_event_payload_in_kb"`
	MaxEventBatchSize          *int64 `db:"max_event_batch_size"`
	EnableUserAuthentication   bool   `db:"enable_user_authentication"`
	HasClientEventWebhooks     bool   `db:"has_client_event_webhooks"`
	HasChannelOccupiedWebhooks bool   `db:"has_channel_occupied_webhooks"`
	HasChannelVacatedWebhooks  bool   `db:"has_channel_vacated_webhooks"`
	HasMemberAddedWebhooks     bool   `db:"has_member_added_webhooks"`
	HasMemberRemovedWebhooks   bool   `db:"has_member_removed_webhooks"`
	HasCacheMissedWebhooks     bool   `db:"has_cache_missed_webhooks"`
}

func (r appRow) toDomain() domain.App {
	return domain.App{
		ID:                         r.ID,
		Key:                        r.Key,
		Secret:                     r.Secret,
		Enabled:                    r.Enabled,
		MaxConnections:             r.MaxConnections,
		EnableClientMessages:       r.EnableClientMessages,
		MaxBackendEventsPerSecond:  r.MaxBackendEventsPerSecond,
		MaxClientEventsPerSecond:   r.MaxClientEventsPerSecond,
		MaxReadRequestsPerMinute:   r.MaxReadRequestsPerMinute,
		Webhooks:                   json.RawMessage(r.Webhooks),
		MaxPresenceMemberSizeInKB:  r.MaxPresenceMemberSizeInKB,
		MaxChannelNameLength:       r.MaxChannelNameLength,
		MaxEventChannelsAtOnce:     r.MaxEventChannelsAtOnce,
		MaxEventNameLength:         r.MaxEventNameLength,
		MaxEventPayloadInKB:        r.MaxEventPayloadInKB,
		MaxEventBatchSize:          r.MaxEventBatchSize,
		EnableUserAuthentication:   r.EnableUserAuthentication,
		HasClientEventWebhooks:     r.HasClientEventWebhooks,
		HasChannelOccupiedWebhooks: r.HasChannelOccupiedWebhooks,
		HasChannelVacatedWebhooks:  r.HasChannelVacatedWebhooks,
		HasMemberAddedWebhooks:     r.HasMemberAddedWebhooks,
		HasMemberRemovedWebhooks:   r.HasMemberRemovedWebhooks,
		HasCacheMissedWebhooks:     r.HasCacheMissedWebhooks,
	}
}

// AppRepo reads and writes app records in the apps table.
type AppRepo struct {
	pool *pgxpool.Pool
}

func NewAppRepo(pool *pgxpool.Pool) *AppRepo {
	return &AppRepo{pool: pool}
}

func (r *AppRepo) Name() string { return "postgres" }

// LoadApps returns every record, enabled or not, ordered by id.
func (r *AppRepo) LoadApps(ctx context.Context) ([]domain.App, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+appColumns+" FROM apps ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query apps: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[appRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan apps: %w", err)
	}

	apps := make([]domain.App, 0, len(records))
	for _, rec := range records {
		apps = append(apps, rec.toDomain())
	}
	return apps, nil
}

// Save inserts or replaces an app record.
func (r *AppRepo) Save(ctx context.Context, app domain.App) error {
	var webhooks []byte
	if len(app.Webhooks) > 0 {
		webhooks = app.Webhooks
	}

	_, err := r.pool.Exec(ctx, `INSERT INTO apps (`+appColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO UPDATE SET
			key = EXCLUDED.key,
			secret = EXCLUDED.secret,
			enabled = EXCLUDED.enabled,
			max_connections = EXCLUDED.max_connections,
			enable_client_messages = EXCLUDED.enable_client_messages,
			max_backend_events_per_second = EXCLUDED.max_backend_events_per_second,
			max_client_events_per_second = EXCLUDED.max_client_events_per_second,
			max_read_requests_per_minute = EXCLUDED.max_read_requests_per_minute,
			webhooks = EXCLUDED.webhooks,
			max_presence_member_size_in_kb = EXCLUDED.max_presence_member_size_in_kb,
			max_channel_name_length = EXCLUDED.max_channel_name_length,
			max_event_channel_at_once = EXCLUDED.max_event_channel_at_once,
			max_event_name_length = EXCLUDED.max_event_name_length,
			max_event_payload_in_kb = EXCLUDED.max_event_payload_in_kb,
			max_event_batch_size = EXCLUDED.max_event_batch_size,
			enable_user_authentication = EXCLUDED.enable_user_authentication,
			has_client_event_webhooks = EXCLUDED.has_client_event_webhooks,
			has_channel_occupied_webhooks = EXCLUDED.has_channel_occupied_webhooks,
			has_channel_vacated_webhooks = EXCLUDED.has_channel_vacated_webhooks,
			has_member_added_webhooks = EXCLUDED.has_member_added_webhooks,
			has_member_removed_webhooks = EXCLUDED.has_member_removed_webhooks,
			has_cache_missed_webhooks = EXCLUDED.has_cache_missed_webhooks,
			updated_at = NOW()`,
		app.ID, app.Key, app.Secret, app.Enabled, app.MaxConnections, app.EnableClientMessages,
		app.MaxBackendEventsPerSecond, app.MaxClientEventsPerSecond, app.MaxReadRequestsPerMinute,
		webhooks, app.MaxPresenceMemberSizeInKB, app.MaxChannelNameLength, app.MaxEventChannelsAtOnce,
		app.MaxEventNameLength, app.MaxEventPayloadInKB, app.MaxEventBatchSize, app.EnableUserAuthentication,
		app.HasClientEventWebhooks, app.HasChannelOccupiedWebhooks, app.HasChannelVacatedWebhooks,
		app.HasMemberAddedWebhooks, app.HasMemberRemovedWebhooks, app.HasCacheMissedWebhooks,
	)
	if err != nil {
		return fmt.Errorf("failed to save app %q: %w", app.ID, err)
	}
	return nil
}

// Delete removes an app record. Deleting an unknown id is not an error.
func (r *AppRepo) Delete(ctx context.Context, appID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM apps WHERE id = $1`, appID); err != nil {
		return fmt.Errorf("failed to delete app %q: %w", appID, err)
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *AppRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
