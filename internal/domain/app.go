package domain

import "encoding/json"

// App is one tenant's configuration record. Only ID (and Key, for client
// routing) drive behavior; limits and webhook flags are carried through
// unenforced.
type App struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Secret  string `json:"secret,omitempty"`
	Enabled bool   `json:"enabled"`

	MaxConnections             *int64          `json:"max_connections,omitempty"`
	EnableClientMessages       bool            `json:"enable_client_messages"`
	MaxBackendEventsPerSecond  *int64          `json:"max_backend_events_per_second,omitempty"`
	MaxClientEventsPerSecond   *int64          `json:"max_client_events_per_second,omitempty"`
	MaxReadRequestsPerMinute   *int64          `json:"max_read_requests_per_minute,omitempty"`
	MaxPresenceMemberSizeInKB  *int64          `json:"max_presence_member_size_in_kb,omitempty"`
	MaxChannelNameLength       *int64          `json:"max_channel_name_length,omitempty"`
	MaxEventChannelsAtOnce     *int64          `json:"max_event_channel_at_once,omitempty"`
	MaxEventNameLength         *int64          `json:"max_event_name_length,omitempty"`
	MaxEventPayloadInKB        *int64          `json:"max_event_payload_in_kb,omitempty"`
	MaxEventBatchSize          *int64          `json:"max_event_batch_size,omitempty"`
	EnableUserAuthentication   bool            `json:"enable_user_authentication"`
	Webhooks                   json.RawMessage `json:"webhooks,omitempty"`
	HasClientEventWebhooks     bool            `json:"has_client_event_webhooks"`
	HasChannelOccupiedWebhooks bool            `json:"has_channel_occupied_webhooks"`
	HasChannelVacatedWebhooks  bool            `json:"has_channel_vacated_webhooks"`
	HasMemberAddedWebhooks     bool            `json:"has_member_added_webhooks"`
	HasMemberRemovedWebhooks   bool            `json:"has_member_removed_webhooks"`
	HasCacheMissedWebhooks     bool            `json:"has_cache_missed_webhooks"`
}

// NewApp returns an App with the defaults applied when a record omits them.
func NewApp(id, key, secret string) App {
	return App{
		ID:                       id,
		Key:                      key,
		Secret:                   secret,
		Enabled:                  true,
		EnableClientMessages:     true,
		EnableUserAuthentication: true,
	}
}

// UnmarshalJSON applies the record defaults (enabled, enable_client_messages and
// enable_user_authentication default to true) before decoding.
func (a *App) UnmarshalJSON(data []byte) error {
	type plain App
	decoded := plain(NewApp("", "", ""))
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*a = App(decoded)
	return nil
}
