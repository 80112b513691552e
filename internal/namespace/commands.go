package namespace

import (
	"fmt"
	"log/slog"

	"github.com/radudiaconu0/sockudo/internal/domain"
)

// namespaceCmd is the command interface for the Namespace actor.
type namespaceCmd interface{ isNamespaceCmd() }

type baseNamespaceCmd struct{}

func (baseNamespaceCmd) isNamespaceCmd() {}

// abortable commands release their waiting caller when handling panics.
type abortable interface{ abort() }

type addSocketCmd struct {
	baseNamespaceCmd
	socket domain.Socket
}

type addToChannelCmd struct {
	baseNamespaceCmd
	socketID string
	channel  string
	replyCh  chan int
}

func (c addToChannelCmd) abort() { close(c.replyCh) }

type removeFromChannelCmd struct {
	baseNamespaceCmd
	socketID string
	channels []string
	single   bool
	replyCh  chan int
}

func (c removeFromChannelCmd) abort() { close(c.replyCh) }

type removeSocketCmd struct {
	baseNamespaceCmd
	socketID string
	replyCh  chan int
}

func (c removeSocketCmd) abort() { close(c.replyCh) }

type getSocketsCmd struct {
	baseNamespaceCmd
	replyCh chan []string
}

func (c getSocketsCmd) abort() { close(c.replyCh) }

type channelsCmd struct {
	baseNamespaceCmd
	replyCh chan map[string]int
}

func (c channelsCmd) abort() { close(c.replyCh) }

type channelCountCmd struct {
	baseNamespaceCmd
	channel string
	replyCh chan int
}

func (c channelCountCmd) abort() { close(c.replyCh) }

type broadcastCmd struct {
	baseNamespaceCmd
	channel string
	exclude string
	payload []byte
}

func (n *Namespace) dispatch(cmd namespaceCmd) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Namespace command panic recovered", "app_id", n.appID, "command_type", fmt.Sprintf("%T", cmd), "panic", r)
			n.countPanic()
			if a, ok := cmd.(abortable); ok {
				a.abort()
			}
		}
	}()

	switch c := cmd.(type) {
	case addSocketCmd:
		n.countCommand("add_socket")
		n.handleAddSocket(c)
	case addToChannelCmd:
		n.countCommand("add_to_channel")
		c.replyCh <- n.handleAddToChannel(c)
	case removeFromChannelCmd:
		n.countCommand("remove_from_channel")
		c.replyCh <- n.handleRemoveFromChannel(c)
	case removeSocketCmd:
		n.countCommand("remove_socket")
		c.replyCh <- n.handleRemoveSocket(c)
	case getSocketsCmd:
		n.countCommand("get_sockets")
		c.replyCh <- n.sortedSockets()
	case channelsCmd:
		n.countCommand("channels")
		c.replyCh <- n.channelCounts()
	case channelCountCmd:
		n.countCommand("channel_count")
		c.replyCh <- len(n.channels[c.channel])
	case broadcastCmd:
		n.countCommand("broadcast")
		n.handleBroadcast(c)
	default:
		slog.Warn("Namespace received unknown command type", "app_id", n.appID, "command_type", fmt.Sprintf("%T", cmd))
	}
}

func (n *Namespace) handleAddSocket(c addSocketCmd) {
	n.sockets[c.socket.ID()] = c.socket
	n.observeSockets()
	slog.Debug("Socket registered", "app_id", n.appID, "socket_id", c.socket.ID(), "sockets", len(n.sockets))
}

func (n *Namespace) handleAddToChannel(c addToChannelCmd) int {
	members, ok := n.channels[c.channel]
	if !ok {
		members = make(map[string]struct{})
		n.channels[c.channel] = members
	}
	members[c.socketID] = struct{}{}
	slog.Debug("Socket joined channel", "app_id", n.appID, "socket_id", c.socketID, "channel", c.channel, "members", len(members))
	return len(members)
}

func (n *Namespace) handleRemoveFromChannel(c removeFromChannelCmd) int {
	for _, channel := range c.channels {
		if members, ok := n.channels[channel]; ok {
			delete(members, c.socketID)
		}
	}

	if c.single {
		return len(n.channels[c.channels[0]])
	}

	total := 0
	for _, members := range n.channels {
		total += len(members)
	}
	return total
}

func (n *Namespace) handleRemoveSocket(c removeSocketCmd) int {
	if _, ok := n.sockets[c.socketID]; ok {
		delete(n.sockets, c.socketID)
		n.observeSockets()
	}
	for _, members := range n.channels {
		delete(members, c.socketID)
	}
	slog.Debug("Socket removed", "app_id", n.appID, "socket_id", c.socketID, "sockets", len(n.sockets))
	return len(n.sockets)
}

func (n *Namespace) channelCounts() map[string]int {
	counts := make(map[string]int, len(n.channels))
	for name, members := range n.channels {
		counts[name] = len(members)
	}
	return counts
}

// handleBroadcast delivers to registered members of the channel only. A
// member id with no registered socket is skipped.
func (n *Namespace) handleBroadcast(c broadcastCmd) {
	delivered := 0
	for socketID := range n.channels[c.channel] {
		if socketID == c.exclude {
			continue
		}
		socket, ok := n.sockets[socketID]
		if !ok {
			continue
		}
		if n.deliver(socket, c.payload) {
			delivered++
		}
	}
	if n.metrics != nil && delivered > 0 {
		n.metrics.Deliveries.WithLabelValues(n.appID).Add(float64(delivered))
	}
}

func (n *Namespace) deliver(socket domain.Socket, payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Delivery panic recovered", "app_id", n.appID, "socket_id", socket.ID(), "panic", r)
			n.countPanic()
			ok = false
		}
	}()
	socket.Deliver(payload)
	return true
}

func (n *Namespace) countCommand(name string) {
	if n.metrics != nil {
		n.metrics.Commands.WithLabelValues(n.appID, name).Inc()
	}
}

func (n *Namespace) countPanic() {
	if n.metrics != nil {
		n.metrics.PanicsRecovered.WithLabelValues(n.appID).Inc()
	}
}

func (n *Namespace) observeSockets() {
	if n.metrics != nil {
		n.metrics.Sockets.WithLabelValues(n.appID).Set(float64(len(n.sockets)))
	}
}
