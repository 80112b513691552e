// Package websocket serves the Pusher client protocol over gorilla/websocket.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/radudiaconu0/sockudo/internal/adapter/metrics"
	"github.com/radudiaconu0/sockudo/internal/connection"
	"github.com/radudiaconu0/sockudo/internal/domain"
)

const maxMessageSize = 64 * 1024

// AppResolver maps the key in the connection URL to an app.
type AppResolver interface {
	Resolve(keyOrID string) (domain.App, error)
}

type Config struct {
	AllowedOrigins  []string
	ActivityTimeout time.Duration
	SendBuffer      int
	Clock           clockwork.Clock
	Metrics         *metrics.WebSocketMetrics
	Limits          *ConnectionLimits
}

// Handler upgrades requests and runs one Connection per socket.
type Handler struct {
	resolver AppResolver
	adapter  domain.Adapter
	ids      *connection.SocketIDGenerator
	upgrader websocket.Upgrader
	cfg      Config

	mu       sync.Mutex
	conns    map[*connection.Connection]struct{}
	draining bool
}

func NewHandler(resolver AppResolver, adapter domain.Adapter, ids *connection.SocketIDGenerator, cfg Config) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Handler{
		resolver: resolver,
		adapter:  adapter,
		ids:      ids,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AllowedOrigins),
		},
		cfg:   cfg,
		conns: make(map[*connection.Connection]struct{}),
	}
}

// Serve upgrades the request for the app identified by appKey and blocks
// until the client goes away.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, appKey string) {
	if h.cfg.Limits != nil {
		ip := clientIP(r)
		if ok, reason := h.cfg.Limits.Acquire(ip); !ok {
			h.reject(string(reason))
			slog.WarnContext(r.Context(), "Connection limit exceeded", "ip", ip, "reason", reason)
			http.Error(w, "too many connections", http.StatusTooManyRequests)
			return
		}
		defer h.cfg.Limits.Release(ip)
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.reject("upgrade_failed")
		slog.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	ctx := r.Context()
	appID := appKey
	if app, err := h.resolver.Resolve(appKey); err == nil {
		appID = app.ID
	}

	writer := newClientWriter(ws, h.cfg.Clock, h.cfg.SendBuffer, h.cfg.Metrics)
	writer.start()

	conn := connection.New(appID, h.ids.Next(), h.adapter, writer, connection.WithActivityTimeout(h.cfg.ActivityTimeout))
	if err := conn.Open(ctx); err != nil {
		reason := "open_failed"
		if errors.Is(err, domain.ErrAppNotFound) {
			reason = "app_not_found"
		}
		h.reject(reason)
		slog.InfoContext(ctx, "Rejected connection", "app_key", appKey, "reason", reason, "error", err)
		_ = writer.Close("app not found")
		return
	}

	if !h.track(conn) {
		conn.Close(context.WithoutCancel(ctx), "server shutting down")
		return
	}
	defer h.untrack(conn)

	if h.cfg.Metrics != nil {
		h.cfg.Metrics.ActiveConnections.Inc()
		defer h.cfg.Metrics.ActiveConnections.Dec()
	}

	h.readLoop(ctx, ws, writer, conn)
	conn.Close(context.WithoutCancel(ctx), "client disconnected")
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, writer *clientWriter, conn *connection.Connection) {
	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "WebSocket read failed", "socket_id", conn.ID(), "error", err)
			}
			return
		}
		writer.touch()

		if messageType != websocket.TextMessage {
			continue
		}

		err = conn.HandleMessage(ctx, data)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrInvalidFrame):
			if h.cfg.Metrics != nil {
				h.cfg.Metrics.MalformedFrames.Inc()
			}
			slog.DebugContext(ctx, "Malformed frame", "app_id", conn.AppID(), "socket_id", conn.ID(), "error", err)
		case errors.Is(err, domain.ErrConnectionClosed), errors.Is(err, domain.ErrNamespaceStopped):
			return
		default:
			slog.WarnContext(ctx, "Failed to handle frame", "app_id", conn.AppID(), "socket_id", conn.ID(), "error", err)
		}
	}
}

// Shutdown closes every live connection with a going-away reason and makes
// the handler refuse new ones. It must run before the adapter stops so that
// sockets can still unregister.
func (h *Handler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	h.draining = true
	conns := make([]*connection.Connection, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Go(func() {
			c.Close(ctx, "server shutting down")
		})
	}
	wg.Wait()

	slog.InfoContext(ctx, "WebSocket connections closed", "count", len(conns))
}

// ActiveConnections returns the number of tracked connections.
func (h *Handler) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Handler) track(c *connection.Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Handler) untrack(c *connection.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

func (h *Handler) reject(reason string) {
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
	}
}
