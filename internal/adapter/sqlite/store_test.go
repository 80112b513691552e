package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/radudiaconu0/sockudo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "apps.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(context.Background(), domain.NewApp("app1", "key1", "")))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	apps, err := second.LoadApps(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "app1", apps[0].ID)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	limit := int64(64)
	full := domain.NewApp("app-b", "key-b", "secret-b")
	full.MaxChannelNameLength = &limit
	full.EnableClientMessages = false
	full.HasMemberAddedWebhooks = true
	full.Webhooks = json.RawMessage(`[{"url":"https://example.com"}]`)

	minimal := domain.NewApp("app-a", "key-a", "")
	minimal.Enabled = false

	require.NoError(t, store.Save(ctx, full))
	require.NoError(t, store.Save(ctx, minimal))

	apps, err := store.LoadApps(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)

	assert.Equal(t, minimal, apps[0])

	got := apps[1]
	assert.Equal(t, "secret-b", got.Secret)
	assert.True(t, got.Enabled)
	assert.False(t, got.EnableClientMessages)
	assert.True(t, got.EnableUserAuthentication)
	assert.True(t, got.HasMemberAddedWebhooks)
	require.NotNil(t, got.MaxChannelNameLength)
	assert.Equal(t, int64(64), *got.MaxChannelNameLength)
	assert.Nil(t, got.MaxConnections)
	assert.JSONEq(t, `[{"url":"https://example.com"}]`, string(got.Webhooks))
}

func TestSaveReplacesExisting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewApp("app1", "old", "")))
	require.NoError(t, store.Save(ctx, domain.NewApp("app1", "new", "")))

	apps, err := store.LoadApps(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "new", apps[0].Key)
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewApp("app1", "k1", "")))
	require.NoError(t, store.Save(ctx, domain.NewApp("app2", "k2", "")))

	require.NoError(t, store.Delete(ctx, "app2"))
	require.NoError(t, store.Delete(ctx, "missing"))

	apps, err := store.LoadApps(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "app1", apps[0].ID)
}

func TestLoadAppsEmpty(t *testing.T) {
	store := openTestStore(t)

	apps, err := store.LoadApps(context.Background())
	require.NoError(t, err)
	assert.Empty(t, apps)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestLoadAppsCanceledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.LoadApps(ctx)
	assert.Error(t, err)
}
