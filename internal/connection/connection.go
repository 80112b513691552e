package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radudiaconu0/sockudo/internal/domain"
)

const defaultActivityTimeout = 120 * time.Second

// Transport is the per-connection channel to the client. SendText must not
// block; Close may be called more than once.
type Transport interface {
	SendText(payload []byte) error
	Close(reason string) error
}

// Option configures a Connection.
type Option func(*Connection)

// WithActivityTimeout sets the hint sent in pusher:connection_established.
func WithActivityTimeout(d time.Duration) Option {
	return func(c *Connection) {
		if d > 0 {
			c.activityTimeout = d
		}
	}
}

// Connection is one client socket scoped to a single app.
type Connection struct {
	appID           string
	socketID        string
	adapter         domain.Adapter
	transport       Transport
	activityTimeout time.Duration

	closed    atomic.Bool
	closeOnce sync.Once

	mu         sync.Mutex
	state      State
	registered bool
	channels   map[string]struct{}
}

var _ domain.Socket = (*Connection)(nil)

func New(appID, socketID string, adapter domain.Adapter, transport Transport, opts ...Option) *Connection {
	c := &Connection{
		appID:           appID,
		socketID:        socketID,
		adapter:         adapter,
		transport:       transport,
		activityTimeout: defaultActivityTimeout,
		state:           StateConnecting,
		channels:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the socket id.
func (c *Connection) ID() string { return c.socketID }

// AppID returns the app the connection belongs to.
func (c *Connection) AppID() string { return c.appID }

// State returns the current protocol state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Channels returns the channels the connection has joined, sorted.
func (c *Connection) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

// Open checks that the app exists and sends pusher:connection_established.
// For an unknown app it sends a pusher:error frame and returns an error
// wrapping domain.ErrAppNotFound; the caller is expected to close.
func (c *Connection) Open(ctx context.Context) error {
	if _, err := c.adapter.Namespace(c.appID); err != nil {
		if errors.Is(err, domain.ErrAppNotFound) {
			c.send(domain.ServerFrame{
				Event: domain.EventError,
				Data:  domain.ErrorData{Message: "App not found", Code: domain.ErrorCodeAppNotFound},
			})
		}
		return err
	}

	c.mu.Lock()
	c.state = StateEstablished
	c.mu.Unlock()

	slog.DebugContext(ctx, "Connection established", "app_id", c.appID, "socket_id", c.socketID)
	return c.send(domain.ServerFrame{
		Event: domain.EventConnectionEstablished,
		Data: domain.ConnectionEstablished{
			SocketID:        c.socketID,
			ActivityTimeout: int(c.activityTimeout / time.Second),
		},
	})
}

// HandleMessage processes one inbound text frame. Malformed frames return an
// error wrapping domain.ErrInvalidFrame and leave the connection open.
func (c *Connection) HandleMessage(ctx context.Context, raw []byte) error {
	if c.closed.Load() {
		return domain.ErrConnectionClosed
	}

	frame, err := domain.ParseClientFrame(raw)
	if err != nil {
		return err
	}

	switch frame.Event {
	case domain.EventPing:
		return c.send(domain.ServerFrame{Event: domain.EventPong})
	case domain.EventSubscribe:
		return c.subscribe(ctx, frame.TargetChannel())
	case domain.EventUnsubscribe:
		return c.unsubscribe(ctx, frame.TargetChannel())
	default:
		slog.DebugContext(ctx, "Ignoring unhandled event", "app_id", c.appID, "socket_id", c.socketID, "event", frame.Event)
		return nil
	}
}

// subscribe registers the socket on first use, joins the channel and only
// then acknowledges, so a publish issued after the ack reaches this socket.
func (c *Connection) subscribe(ctx context.Context, channel string) error {
	if channel == "" {
		return fmt.Errorf("%w: subscribe without channel", domain.ErrInvalidFrame)
	}

	c.mu.Lock()
	needsRegister := !c.registered
	c.mu.Unlock()

	if needsRegister {
		if err := c.adapter.RegisterConnection(ctx, c.appID, c); err != nil {
			return fmt.Errorf("register socket: %w", err)
		}
		if err := c.undoIfClosed(ctx); err != nil {
			return err
		}
		c.mu.Lock()
		c.registered = true
		c.mu.Unlock()
	}

	members, err := c.adapter.JoinChannel(ctx, c.appID, channel, c.socketID)
	if err != nil {
		return fmt.Errorf("join channel %q: %w", channel, err)
	}
	if err := c.undoIfClosed(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.channels[channel] = struct{}{}
	if c.state != StateClosed {
		c.state = StateSubscribed
	}
	c.mu.Unlock()

	slog.DebugContext(ctx, "Subscribed", "app_id", c.appID, "socket_id", c.socketID, "channel", channel, "members", members)
	return c.send(domain.ServerFrame{Event: domain.EventSubscriptionSucceeded, Channel: channel})
}

// undoIfClosed purges the socket again when Close ran while an adapter call
// was in flight. Close's own unregister may have been processed before the
// register or join it raced with.
func (c *Connection) undoIfClosed(ctx context.Context) error {
	if !c.closed.Load() {
		return nil
	}
	if _, err := c.adapter.UnregisterConnection(context.WithoutCancel(ctx), c.appID, c.socketID); err != nil {
		slog.WarnContext(ctx, "Failed to purge socket closed mid-subscribe", "app_id", c.appID, "socket_id", c.socketID, "error", err)
	}
	return domain.ErrConnectionClosed
}

func (c *Connection) unsubscribe(ctx context.Context, channel string) error {
	if channel == "" {
		return fmt.Errorf("%w: unsubscribe without channel", domain.ErrInvalidFrame)
	}

	remaining, err := c.adapter.LeaveChannel(ctx, c.appID, channel, c.socketID)
	if err != nil {
		return fmt.Errorf("leave channel %q: %w", channel, err)
	}

	c.mu.Lock()
	delete(c.channels, channel)
	if c.state == StateSubscribed && len(c.channels) == 0 {
		c.state = StateEstablished
	}
	c.mu.Unlock()

	slog.DebugContext(ctx, "Unsubscribed", "app_id", c.appID, "socket_id", c.socketID, "channel", channel, "members", remaining)
	return c.send(domain.ServerFrame{Event: domain.EventUnsubscribed, Channel: channel})
}

// Deliver hands a broadcast payload to the transport. Failures are dropped.
func (c *Connection) Deliver(payload []byte) {
	if c.closed.Load() {
		return
	}
	if err := c.transport.SendText(payload); err != nil {
		slog.Debug("Dropped broadcast", "app_id", c.appID, "socket_id", c.socketID, "error", err)
	}
}

// Close unregisters the socket from its namespace and closes the transport.
// Only the first call has any effect.
func (c *Connection) Close(ctx context.Context, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()

		remaining, err := c.adapter.UnregisterConnection(ctx, c.appID, c.socketID)
		if err != nil {
			slog.WarnContext(ctx, "Failed to unregister socket", "app_id", c.appID, "socket_id", c.socketID, "error", err)
		} else {
			slog.DebugContext(ctx, "Connection closed", "app_id", c.appID, "socket_id", c.socketID, "reason", reason, "remaining_sockets", remaining)
		}

		if err := c.transport.Close(reason); err != nil {
			slog.Debug("Transport close failed", "socket_id", c.socketID, "error", err)
		}
	})
}

func (c *Connection) send(frame domain.ServerFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode %s: %w", frame.Event, err)
	}
	if err := c.transport.SendText(payload); err != nil {
		return fmt.Errorf("send %s: %w", frame.Event, err)
	}
	return nil
}
