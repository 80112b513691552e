package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/radudiaconu0/sockudo/internal/adapter/local"
	"github.com/radudiaconu0/sockudo/internal/domain"
	"github.com/radudiaconu0/sockudo/internal/ingress"
	"github.com/radudiaconu0/sockudo/internal/platform/config"
	"github.com/stretchr/testify/require"
)

type serverOptions struct {
	cfg          *config.Config
	healthChecks []HealthCheck
	registry     *prometheus.Registry
}

type serverOption func(*serverOptions)

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(o *serverOptions) { o.healthChecks = checks }
}

func withRegistry(reg *prometheus.Registry) serverOption {
	return func(o *serverOptions) { o.registry = reg }
}

func withRateLimit(limit float64, burst int) serverOption {
	return func(o *serverOptions) {
		o.cfg.APIRateLimit = limit
		o.cfg.APIRateBurst = burst
	}
}

type recordingSocket struct {
	id       string
	payloads chan string
}

func newRecordingSocket(id string) *recordingSocket {
	return &recordingSocket{id: id, payloads: make(chan string, 16)}
}

func (s *recordingSocket) ID() string { return s.id }

func (s *recordingSocket) Deliver(payload []byte) {
	s.payloads <- string(payload)
}

type stubWebSocket struct {
	keys chan string
}

func (s *stubWebSocket) Serve(w http.ResponseWriter, _ *http.Request, appKey string) {
	s.keys <- appKey
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type testServer struct {
	*Server
	adapter *local.Adapter
	ws      *stubWebSocket
}

// newTestServer builds a server over a real local adapter with one app, "app1".
func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	o := &serverOptions{cfg: &config.Config{Port: "0", APIRateBurst: 20}}
	for _, opt := range opts {
		opt(o)
	}

	adapter, err := local.New([]domain.App{domain.NewApp("app1", "key1", "secret1")})
	require.NoError(t, err)
	t.Cleanup(adapter.Stop)

	ws := &stubWebSocket{keys: make(chan string, 1)}
	srv := NewServer(o.cfg, ingress.New(adapter, nil), adapter, ws, o.registry, o.healthChecks)
	return &testServer{Server: srv, adapter: adapter, ws: ws}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func (s *testServer) join(t *testing.T, channel string, socket *recordingSocket) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.adapter.RegisterConnection(ctx, "app1", socket))
	_, err := s.adapter.JoinChannel(ctx, "app1", channel, socket.ID())
	require.NoError(t, err)
}
