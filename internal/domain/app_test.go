package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_UnmarshalAppliesDefaults(t *testing.T) {
	var app App
	require.NoError(t, json.Unmarshal([]byte(`{"id":"app1","key":"key1"}`), &app))

	assert.Equal(t, "app1", app.ID)
	assert.Equal(t, "key1", app.Key)
	assert.True(t, app.Enabled)
	assert.True(t, app.EnableClientMessages)
	assert.True(t, app.EnableUserAuthentication)
	assert.Nil(t, app.MaxConnections)
}

func TestApp_UnmarshalExplicitValues(t *testing.T) {
	raw := `{
		"id": "app2",
		"key": "key2",
		"secret": "s",
		"enabled": false,
		"enable_client_messages": false,
		"max_connections": 100,
		"max_event_channel_at_once": 10,
		"webhooks": [{"url":"http://example.com"}],
		"has_member_added_webhooks": true
	}`

	var app App
	require.NoError(t, json.Unmarshal([]byte(raw), &app))

	assert.False(t, app.Enabled)
	assert.False(t, app.EnableClientMessages)
	assert.True(t, app.EnableUserAuthentication)
	require.NotNil(t, app.MaxConnections)
	assert.Equal(t, int64(100), *app.MaxConnections)
	require.NotNil(t, app.MaxEventChannelsAtOnce)
	assert.Equal(t, int64(10), *app.MaxEventChannelsAtOnce)
	assert.JSONEq(t, `[{"url":"http://example.com"}]`, string(app.Webhooks))
	assert.True(t, app.HasMemberAddedWebhooks)
}

func TestApp_UnmarshalList(t *testing.T) {
	var apps []App
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"a","key":"ka"},{"id":"b","key":"kb","enabled":false}]`), &apps))
	require.Len(t, apps, 2)
	assert.True(t, apps[0].Enabled)
	assert.False(t, apps[1].Enabled)
}
