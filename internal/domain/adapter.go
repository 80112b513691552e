package domain

import "context"

// Socket is the outbound handle a namespace delivers broadcast payloads to.
// Deliver must not block.
type Socket interface {
	ID() string
	Deliver(payload []byte)
}

// Adapter routes operations to the namespace owning an app. Every method
// naming an unconfigured app returns an error wrapping ErrAppNotFound.
type Adapter interface {
	RegisterConnection(ctx context.Context, appID string, socket Socket) error
	UnregisterConnection(ctx context.Context, appID, socketID string) (int, error)
	JoinChannel(ctx context.Context, appID, channel, socketID string) (int, error)
	LeaveChannel(ctx context.Context, appID, channel, socketID string) (int, error)
	LeaveChannels(ctx context.Context, appID string, channels []string, socketID string) (int, error)
	Publish(ctx context.Context, appID string, event Event) error
	Namespace(appID string) (NamespaceView, error)
}

// NamespaceView is the read-only surface of a namespace used for diagnostics
// and the channel query API.
type NamespaceView interface {
	AppID() string
	// Sockets returns the registered socket ids sorted ascending.
	Sockets(ctx context.Context) ([]string, error)
	Channels(ctx context.Context) (map[string]int, error)
	ChannelCount(ctx context.Context, channel string) (int, error)
}
