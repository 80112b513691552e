// Package local implements the in-process Adapter: a read-only map from app
// id to its Namespace, built once at startup.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/radudiaconu0/sockudo/internal/domain"
	"github.com/radudiaconu0/sockudo/internal/namespace"
)

var _ domain.Adapter = (*Adapter)(nil)

// Adapter routes every operation to the namespace owning the app.
type Adapter struct {
	namespaces map[string]*namespace.Namespace
	stopOnce   sync.Once
}

// New creates one namespace per app. opts are applied to every namespace.
// Apps with an empty or duplicate id are rejected.
func New(apps []domain.App, opts ...namespace.Option) (*Adapter, error) {
	namespaces := make(map[string]*namespace.Namespace, len(apps))
	for _, app := range apps {
		if app.ID == "" {
			stopAll(namespaces)
			return nil, errors.New("app with empty id")
		}
		if _, exists := namespaces[app.ID]; exists {
			stopAll(namespaces)
			return nil, fmt.Errorf("duplicate app id %q", app.ID)
		}
		namespaces[app.ID] = namespace.New(app.ID, opts...)
	}
	slog.Info("Local adapter ready", "apps", len(namespaces))
	return &Adapter{namespaces: namespaces}, nil
}

func (a *Adapter) lookup(appID string) (*namespace.Namespace, error) {
	ns, ok := a.namespaces[appID]
	if !ok {
		return nil, fmt.Errorf("app %q: %w", appID, domain.ErrAppNotFound)
	}
	return ns, nil
}

// RegisterConnection adds socket to the app's registry.
func (a *Adapter) RegisterConnection(ctx context.Context, appID string, socket domain.Socket) error {
	ns, err := a.lookup(appID)
	if err != nil {
		return err
	}
	return ns.AddSocket(ctx, socket)
}

// UnregisterConnection removes the socket from the registry and every channel.
func (a *Adapter) UnregisterConnection(ctx context.Context, appID, socketID string) (int, error) {
	ns, err := a.lookup(appID)
	if err != nil {
		return 0, err
	}
	return ns.RemoveSocket(ctx, socketID)
}

// JoinChannel adds socketID to channel and returns the member count.
func (a *Adapter) JoinChannel(ctx context.Context, appID, channel, socketID string) (int, error) {
	ns, err := a.lookup(appID)
	if err != nil {
		return 0, err
	}
	return ns.AddToChannel(ctx, socketID, channel)
}

// LeaveChannel removes socketID from channel and returns its remaining count.
func (a *Adapter) LeaveChannel(ctx context.Context, appID, channel, socketID string) (int, error) {
	ns, err := a.lookup(appID)
	if err != nil {
		return 0, err
	}
	return ns.RemoveFromChannel(ctx, socketID, channel)
}

// LeaveChannels removes socketID from each channel and returns the remaining
// member sum across the app's channels.
func (a *Adapter) LeaveChannels(ctx context.Context, appID string, channels []string, socketID string) (int, error) {
	ns, err := a.lookup(appID)
	if err != nil {
		return 0, err
	}
	return ns.RemoveFromChannels(ctx, socketID, channels)
}

// Publish forwards one single-channel envelope per target channel. It returns
// once every envelope is enqueued and does not wait for delivery.
func (a *Adapter) Publish(ctx context.Context, appID string, event domain.Event) error {
	ns, err := a.lookup(appID)
	if err != nil {
		return err
	}
	for _, channel := range event.Channels {
		if err := ns.Broadcast(ctx, event.ForChannel(channel)); err != nil {
			return fmt.Errorf("publish %q to %q: %w", event.Name, channel, err)
		}
	}
	return nil
}

// Namespace returns a read-only view of the app's namespace.
func (a *Adapter) Namespace(appID string) (domain.NamespaceView, error) {
	ns, err := a.lookup(appID)
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// AppIDs returns the configured app ids in sorted order.
func (a *Adapter) AppIDs() []string {
	ids := make([]string, 0, len(a.namespaces))
	for id := range a.namespaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ping checks that every namespace still answers queries.
func (a *Adapter) Ping(ctx context.Context) error {
	for _, id := range a.AppIDs() {
		if _, err := a.namespaces[id].ChannelCount(ctx, ""); err != nil {
			return fmt.Errorf("namespace %s: %w", id, err)
		}
	}
	return nil
}

// Stop stops every namespace.
func (a *Adapter) Stop() {
	a.stopOnce.Do(func() {
		stopAll(a.namespaces)
		slog.Info("Local adapter stopped", "apps", len(a.namespaces))
	})
}

func stopAll(namespaces map[string]*namespace.Namespace) {
	var wg sync.WaitGroup
	for _, ns := range namespaces {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ns.Stop()
		}()
	}
	wg.Wait()
}
