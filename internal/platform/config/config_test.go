package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "6001", cfg.Port)
	assert.Equal(t, ":6001", cfg.Addr())
	assert.Equal(t, SourceStatic, cfg.AppSource)
	assert.Equal(t, "app-id", cfg.DefaultAppID)
	assert.Equal(t, "app-key", cfg.DefaultAppKey)
	assert.Equal(t, "app-secret", cfg.DefaultAppSecret)
	assert.Equal(t, 120*time.Second, cfg.ActivityTimeout)
	assert.Equal(t, 1024, cfg.NamespaceMailboxSize)
	assert.Equal(t, 64, cfg.ClientSendBuffer)
	assert.Zero(t, cfg.APIRateLimit)
	assert.Equal(t, 20, cfg.APIRateBurst)
	assert.Equal(t, int64(10000), cfg.MaxConnections)
	assert.Equal(t, 100, cfg.MaxConnectionsPerIP)
	assert.Equal(t, 10.0, cfg.ConnectionRate)
	assert.Equal(t, 20, cfg.ConnectionBurst)
	assert.Empty(t, cfg.Origins())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ACTIVITY_TIMEOUT", "30s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("API_RATE_LIMIT", "5.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, 30*time.Second, cfg.ActivityTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
	assert.Equal(t, 5.5, cfg.APIRateLimit)
}

func TestLoad_BackendSources(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "postgres with url", env: map[string]string{"APP_SOURCE": "postgres", "DATABASE_URL": "postgres://localhost/test"}},
		{name: "postgres without url", env: map[string]string{"APP_SOURCE": "postgres"}, wantErr: "DATABASE_URL is required for APP_SOURCE=postgres"},
		{name: "redis with url", env: map[string]string{"APP_SOURCE": "redis", "REDIS_URL": "redis://localhost:6379"}},
		{name: "redis without url", env: map[string]string{"APP_SOURCE": "redis"}, wantErr: "REDIS_URL is required for APP_SOURCE=redis"},
		{name: "sqlite with path", env: map[string]string{"APP_SOURCE": "sqlite", "SQLITE_PATH": "/tmp/apps.db"}},
		{name: "sqlite without path", env: map[string]string{"APP_SOURCE": "sqlite"}, wantErr: "SQLITE_PATH is required for APP_SOURCE=sqlite"},
		{name: "unknown source", env: map[string]string{"APP_SOURCE": "etcd"}, wantErr: `APP_SOURCE must be one of static, postgres, redis, sqlite, got "etcd"`},
		{name: "static with apps file", env: map[string]string{"APPS_FILE": "apps.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_InvalidLimits(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"activity timeout too short", "ACTIVITY_TIMEOUT", "500ms", "ACTIVITY_TIMEOUT must be at least 1s, got 500ms"},
		{"zero mailbox", "NAMESPACE_MAILBOX_SIZE", "0", "NAMESPACE_MAILBOX_SIZE must be positive, got 0"},
		{"zero send buffer", "CLIENT_SEND_BUFFER", "0", "CLIENT_SEND_BUFFER must be positive, got 0"},
		{"negative rate", "API_RATE_LIMIT", "-1", "API_RATE_LIMIT must not be negative"},
		{"negative connection cap", "MAX_CONNECTIONS", "-1", "connection limits must not be negative"},
		{"negative connection rate", "CONNECTION_RATE", "-2", "connection limits must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_RateBurstRequiredWithLimit(t *testing.T) {
	t.Setenv("API_RATE_LIMIT", "10")
	t.Setenv("API_RATE_BURST", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, "API_RATE_BURST must be positive when API_RATE_LIMIT is set", err.Error())
}

func TestLoad_MalformedDuration(t *testing.T) {
	t.Setenv("ACTIVITY_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load environment variables")
}
