// Package correlation carries a per-request or per-connection id through
// context and stamps it on every log record.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// Header is the request header an upstream proxy may use to pass an id.
	Header = "X-Request-ID"
	// LogKey is the attribute name added to log records.
	LogKey = "correlation_id"

	idBytes           = 4
	maxHeaderIDLength = 64
)

type ctxKey struct{}

// NewID returns 8 hex characters of randomness.
func NewID() string {
	var b [idBytes]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// FromRequest reuses the caller's X-Request-ID when it is a short printable
// token and mints a new id otherwise.
func FromRequest(r *http.Request) string {
	if id := r.Header.Get(Header); acceptable(id) {
		return id
	}
	return NewID()
}

func acceptable(id string) bool {
	if id == "" || len(id) > maxHeaderIDLength {
		return false
	}
	return strings.IndexFunc(id, func(ch rune) bool { return ch < '!' || ch > '~' }) < 0
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID reports the id stored in ctx. An empty id counts as absent.
func ID(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id, id != ""
}

// Handler decorates a slog.Handler, adding LogKey to records whose context
// carries an id.
type Handler struct {
	slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{Handler: inner}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r.AddAttrs(slog.String(LogKey, id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewHandler(h.Handler.WithAttrs(attrs))
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return NewHandler(h.Handler.WithGroup(name))
}
