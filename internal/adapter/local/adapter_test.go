package local

import (
	"context"
	"sync"
	"testing"

	"github.com/radudiaconu0/sockudo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSocket struct {
	id string

	mu       sync.Mutex
	payloads []string
}

func (s *recordingSocket) ID() string { return s.id }

func (s *recordingSocket) Deliver(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, string(payload))
}

func (s *recordingSocket) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...)
}

func newTestAdapter(t *testing.T, appIDs ...string) *Adapter {
	t.Helper()
	apps := make([]domain.App, 0, len(appIDs))
	for _, id := range appIDs {
		apps = append(apps, domain.NewApp(id, id+"-key", ""))
	}
	a, err := New(apps)
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return a
}

// waitIdle waits until every command previously sent to appID has been handled.
func waitIdle(t *testing.T, a *Adapter, appID string) {
	t.Helper()
	ns, err := a.Namespace(appID)
	require.NoError(t, err)
	_, err = ns.Sockets(context.Background())
	require.NoError(t, err)
}

func TestNew_RejectsInvalidApps(t *testing.T) {
	tests := []struct {
		name string
		apps []domain.App
	}{
		{name: "empty id", apps: []domain.App{domain.NewApp("", "k", "")}},
		{name: "duplicate id", apps: []domain.App{domain.NewApp("a", "k1", ""), domain.NewApp("a", "k2", "")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.apps)
			assert.Error(t, err)
		})
	}
}

func TestAdapter_UnknownAppIsReported(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, "app1")
	socket := &recordingSocket{id: "1.1"}

	assert.ErrorIs(t, a.RegisterConnection(ctx, "nope", socket), domain.ErrAppNotFound)

	_, err := a.UnregisterConnection(ctx, "nope", "1.1")
	assert.ErrorIs(t, err, domain.ErrAppNotFound)

	_, err = a.JoinChannel(ctx, "nope", "room", "1.1")
	assert.ErrorIs(t, err, domain.ErrAppNotFound)

	_, err = a.LeaveChannel(ctx, "nope", "room", "1.1")
	assert.ErrorIs(t, err, domain.ErrAppNotFound)

	_, err = a.LeaveChannels(ctx, "nope", []string{"room"}, "1.1")
	assert.ErrorIs(t, err, domain.ErrAppNotFound)

	_, err = a.Namespace("nope")
	assert.ErrorIs(t, err, domain.ErrAppNotFound)
}

func TestAdapter_PublishToUnknownAppDeliversNothing(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, "app1")
	socket := &recordingSocket{id: "1.1"}
	require.NoError(t, a.RegisterConnection(ctx, "app1", socket))
	_, err := a.JoinChannel(ctx, "app1", "room", "1.1")
	require.NoError(t, err)

	err = a.Publish(ctx, "app2", domain.Event{Name: "msg", Data: "hi", Channels: []string{"room"}})
	require.ErrorIs(t, err, domain.ErrAppNotFound)

	waitIdle(t, a, "app1")
	assert.Empty(t, socket.received())
}

func TestAdapter_PublishFansOutPerChannel(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, "app1")

	s1, s2, s3 := &recordingSocket{id: "1.1"}, &recordingSocket{id: "1.2"}, &recordingSocket{id: "1.3"}
	for _, s := range []*recordingSocket{s1, s2, s3} {
		require.NoError(t, a.RegisterConnection(ctx, "app1", s))
	}
	for _, id := range []string{"1.1", "1.2"} {
		_, err := a.JoinChannel(ctx, "app1", "room", id)
		require.NoError(t, err)
	}
	_, err := a.JoinChannel(ctx, "app1", "lobby", "1.1")
	require.NoError(t, err)

	require.NoError(t, a.Publish(ctx, "app1", domain.Event{Name: "msg", Data: "hi", Channels: []string{"room", "lobby"}}))
	waitIdle(t, a, "app1")

	require.Len(t, s1.received(), 2)
	assert.JSONEq(t, `{"event":"msg","channel":"room","data":"hi"}`, s1.received()[0])
	assert.JSONEq(t, `{"event":"msg","channel":"lobby","data":"hi"}`, s1.received()[1])
	require.Len(t, s2.received(), 1)
	assert.JSONEq(t, `{"event":"msg","channel":"room","data":"hi"}`, s2.received()[0])
	assert.Empty(t, s3.received())
}

func TestAdapter_AppsAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, "app1", "app2")
	assert.Equal(t, []string{"app1", "app2"}, a.AppIDs())

	s1 := &recordingSocket{id: "1.1"}
	s2 := &recordingSocket{id: "1.1"}
	require.NoError(t, a.RegisterConnection(ctx, "app1", s1))
	require.NoError(t, a.RegisterConnection(ctx, "app2", s2))
	for _, app := range []string{"app1", "app2"} {
		count, err := a.JoinChannel(ctx, app, "room", "1.1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}

	require.NoError(t, a.Publish(ctx, "app1", domain.Event{Name: "msg", Data: "hi", Channels: []string{"room"}}))
	waitIdle(t, a, "app1")
	waitIdle(t, a, "app2")

	assert.Len(t, s1.received(), 1)
	assert.Empty(t, s2.received())

	remaining, err := a.UnregisterConnection(ctx, "app1", "1.1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	ns, err := a.Namespace("app2")
	require.NoError(t, err)
	count, err := ns.ChannelCount(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAdapter_LeaveChannels(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, "app1")

	for _, ch := range []string{"a", "b", "c"} {
		_, err := a.JoinChannel(ctx, "app1", ch, "1.1")
		require.NoError(t, err)
	}
	_, err := a.JoinChannel(ctx, "app1", "c", "1.2")
	require.NoError(t, err)

	remaining, err := a.LeaveChannel(ctx, "app1", "a", "1.1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	total, err := a.LeaveChannels(ctx, "app1", []string{"b", "c"}, "1.1")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestAdapter_Ping(t *testing.T) {
	a := newTestAdapter(t, "app1", "app2")
	require.NoError(t, a.Ping(context.Background()))

	a.Stop()
	err := a.Ping(context.Background())
	require.ErrorIs(t, err, domain.ErrNamespaceStopped)
	assert.Contains(t, err.Error(), "namespace app1")
}

func TestAdapter_StopIsIdempotent(t *testing.T) {
	a := newTestAdapter(t, "app1")
	a.Stop()
	a.Stop()

	err := a.RegisterConnection(context.Background(), "app1", &recordingSocket{id: "1.1"})
	assert.ErrorIs(t, err, domain.ErrNamespaceStopped)
}
