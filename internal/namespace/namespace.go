package namespace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/radudiaconu0/sockudo/internal/adapter/metrics"
	"github.com/radudiaconu0/sockudo/internal/domain"
)

const (
	defaultMailboxSize = 1024
	stopTimeout        = 10 * time.Second
	depthInterval      = time.Second
)

// ErrCommandFailed is returned to a caller whose command panicked inside the
// namespace goroutine. The namespace itself keeps running.
var ErrCommandFailed = errors.New("namespace command failed")

// Option configures a Namespace.
type Option func(*Namespace)

// WithMailboxSize sets the capacity of the command channel.
func WithMailboxSize(size int) Option {
	return func(n *Namespace) {
		if size > 0 {
			n.mailboxSize = size
		}
	}
}

// WithMetrics records namespace activity on m.
func WithMetrics(m *metrics.NamespaceMetrics) Option {
	return func(n *Namespace) { n.metrics = m }
}

// WithClock replaces the clock driving the mailbox depth probe and stop timeout.
func WithClock(clock clockwork.Clock) Option {
	return func(n *Namespace) { n.clock = clock }
}

// Namespace owns one app's sockets and channel membership. All state is
// touched only by the run goroutine.
type Namespace struct {
	appID       string
	mailboxSize int
	clock       clockwork.Clock
	metrics     *metrics.NamespaceMetrics

	cmdCh    chan namespaceCmd
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	sockets  map[string]domain.Socket
	channels map[string]map[string]struct{}
}

// New starts the namespace goroutine for appID.
func New(appID string, opts ...Option) *Namespace {
	n := &Namespace{
		appID:       appID,
		mailboxSize: defaultMailboxSize,
		clock:       clockwork.NewRealClock(),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		sockets:     make(map[string]domain.Socket),
		channels:    make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.cmdCh = make(chan namespaceCmd, n.mailboxSize)
	go n.run()
	return n
}

// AppID returns the app this namespace belongs to.
func (n *Namespace) AppID() string {
	return n.appID
}

// AddSocket registers socket, replacing any socket with the same id. It only
// enqueues the command; later commands from the same caller observe it.
func (n *Namespace) AddSocket(ctx context.Context, socket domain.Socket) error {
	return n.enqueue(ctx, addSocketCmd{socket: socket})
}

// AddToChannel adds socketID to channel and returns the channel's member
// count. The socket does not need to be registered.
func (n *Namespace) AddToChannel(ctx context.Context, socketID, channel string) (int, error) {
	replyCh := make(chan int, 1)
	return ask(ctx, n, addToChannelCmd{socketID: socketID, channel: channel, replyCh: replyCh}, replyCh)
}

// RemoveFromChannel removes socketID from channel and returns the channel's
// remaining member count. An unknown channel counts as empty.
func (n *Namespace) RemoveFromChannel(ctx context.Context, socketID, channel string) (int, error) {
	replyCh := make(chan int, 1)
	return ask(ctx, n, removeFromChannelCmd{socketID: socketID, channels: []string{channel}, single: true, replyCh: replyCh}, replyCh)
}

// RemoveFromChannels removes socketID from every named channel and returns
// the sum of member counts across all of the namespace's channels.
func (n *Namespace) RemoveFromChannels(ctx context.Context, socketID string, channels []string) (int, error) {
	replyCh := make(chan int, 1)
	return ask(ctx, n, removeFromChannelCmd{socketID: socketID, channels: channels, replyCh: replyCh}, replyCh)
}

// RemoveSocket deletes socketID from the registry and from every channel in
// one step and returns the number of sockets left. Unknown ids are a no-op.
func (n *Namespace) RemoveSocket(ctx context.Context, socketID string) (int, error) {
	replyCh := make(chan int, 1)
	return ask(ctx, n, removeSocketCmd{socketID: socketID, replyCh: replyCh}, replyCh)
}

// Sockets returns a sorted snapshot of the registered socket ids.
func (n *Namespace) Sockets(ctx context.Context) ([]string, error) {
	replyCh := make(chan []string, 1)
	return ask(ctx, n, getSocketsCmd{replyCh: replyCh}, replyCh)
}

// Channels returns every channel entry with its member count. Entries are
// never pruned, so emptied channels report zero.
func (n *Namespace) Channels(ctx context.Context) (map[string]int, error) {
	replyCh := make(chan map[string]int, 1)
	return ask(ctx, n, channelsCmd{replyCh: replyCh}, replyCh)
}

// ChannelCount returns the member count of channel, zero when unknown.
func (n *Namespace) ChannelCount(ctx context.Context, channel string) (int, error) {
	replyCh := make(chan int, 1)
	return ask(ctx, n, channelCountCmd{channel: channel, replyCh: replyCh}, replyCh)
}

// Broadcast hands env to every registered member of env.Channel except the
// excluded socket. It returns once the command is enqueued.
func (n *Namespace) Broadcast(ctx context.Context, env domain.Envelope) error {
	payload, err := env.Payload()
	if err != nil {
		return fmt.Errorf("failed to encode broadcast payload: %w", err)
	}
	return n.enqueue(ctx, broadcastCmd{channel: env.Channel, exclude: env.ExcludeSocketID, payload: payload})
}

// Stop shuts down the namespace goroutine. Pending and later commands fail
// with domain.ErrNamespaceStopped. Safe to call more than once.
func (n *Namespace) Stop() {
	n.stopOnce.Do(func() { close(n.quit) })

	timeout := n.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-n.done:
	case <-timeout.Chan():
		slog.Warn("Namespace stop timeout exceeded", "app_id", n.appID, "timeout", stopTimeout)
	}
}

func (n *Namespace) enqueue(ctx context.Context, cmd namespaceCmd) error {
	select {
	case <-n.quit:
		return domain.ErrNamespaceStopped
	default:
	}

	select {
	case n.cmdCh <- cmd:
		return nil
	case <-n.quit:
		return domain.ErrNamespaceStopped
	case <-ctx.Done():
		return fmt.Errorf("enqueue %T: %w", cmd, ctx.Err())
	}
}

func ask[T any](ctx context.Context, n *Namespace, cmd namespaceCmd, replyCh chan T) (T, error) {
	var zero T
	if err := n.enqueue(ctx, cmd); err != nil {
		return zero, err
	}

	select {
	case v, ok := <-replyCh:
		if !ok {
			return zero, ErrCommandFailed
		}
		return v, nil
	case <-n.done:
		// The reply may have been sent just before shutdown.
		select {
		case v, ok := <-replyCh:
			if ok {
				return v, nil
			}
		default:
		}
		return zero, domain.ErrNamespaceStopped
	case <-ctx.Done():
		return zero, fmt.Errorf("await %T: %w", cmd, ctx.Err())
	}
}

func (n *Namespace) run() {
	defer close(n.done)

	depthTicker := n.clock.NewTicker(depthInterval)
	defer depthTicker.Stop()

	for {
		select {
		case <-n.quit:
			slog.Debug("Namespace stopped", "app_id", n.appID, "sockets", len(n.sockets), "pending", len(n.cmdCh))
			return
		case <-depthTicker.Chan():
			n.observeDepth()
		case cmd := <-n.cmdCh:
			n.dispatch(cmd)
		}
	}
}

func (n *Namespace) observeDepth() {
	depth := len(n.cmdCh)
	if n.metrics != nil {
		n.metrics.MailboxDepth.WithLabelValues(n.appID).Set(float64(depth))
	}
	if depth > cap(n.cmdCh)*4/5 {
		slog.Warn("Namespace mailbox near capacity", "app_id", n.appID, "depth", depth, "capacity", cap(n.cmdCh))
	}
}

func (n *Namespace) sortedSockets() []string {
	ids := make([]string, 0, len(n.sockets))
	for id := range n.sockets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
