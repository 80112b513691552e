// Package ingress accepts server-side publish requests and hands them to the
// adapter. It returns once the events are enqueued and never waits for
// delivery to clients.
package ingress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/radudiaconu0/sockudo/internal/adapter/metrics"
	"github.com/radudiaconu0/sockudo/internal/domain"
)

// Publisher is the adapter surface the ingress needs.
type Publisher interface {
	Publish(ctx context.Context, appID string, event domain.Event) error
	Namespace(appID string) (domain.NamespaceView, error)
}

type Ingress struct {
	publisher Publisher
	metrics   *metrics.PublishMetrics
}

func New(publisher Publisher, m *metrics.PublishMetrics) *Ingress {
	return &Ingress{publisher: publisher, metrics: m}
}

// Publish resolves the app, validates req and issues one single-channel
// publish per target channel. An unknown app is reported before a malformed
// request. Errors wrap domain.ErrAppNotFound or domain.ErrInvalidPublish.
func (i *Ingress) Publish(ctx context.Context, appID string, req domain.PublishRequest) error {
	if err := i.resolve(appID); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		i.count("invalid")
		return err
	}
	return i.publish(ctx, appID, req)
}

// PublishBatch validates every request before publishing any of them, so an
// invalid entry rejects the whole batch.
func (i *Ingress) PublishBatch(ctx context.Context, appID string, batch []domain.PublishRequest) error {
	if err := i.resolve(appID); err != nil {
		return err
	}
	if len(batch) == 0 {
		i.count("invalid")
		return fmt.Errorf("%w: batch is empty", domain.ErrInvalidPublish)
	}
	for idx, req := range batch {
		if err := req.Validate(); err != nil {
			i.count("invalid")
			return fmt.Errorf("batch[%d]: %w", idx, err)
		}
	}
	for _, req := range batch {
		if err := i.publish(ctx, appID, req); err != nil {
			return err
		}
	}
	return nil
}

func (i *Ingress) resolve(appID string) error {
	if _, err := i.publisher.Namespace(appID); err != nil {
		i.count("unknown_app")
		return err
	}
	return nil
}

func (i *Ingress) publish(ctx context.Context, appID string, req domain.PublishRequest) error {
	event := req.Event()
	for _, channel := range event.Channels {
		single := event
		single.Channels = []string{channel}
		if err := i.publisher.Publish(ctx, appID, single); err != nil {
			i.count("failed")
			return fmt.Errorf("publish %q: %w", req.Name, err)
		}
	}

	i.count("accepted")
	if i.metrics != nil {
		i.metrics.Channels.Observe(float64(len(event.Channels)))
	}
	slog.DebugContext(ctx, "Event published", "app_id", appID, "event", req.Name, "channels", len(event.Channels))
	return nil
}

func (i *Ingress) count(result string) {
	if i.metrics != nil {
		i.metrics.Events.WithLabelValues(result).Inc()
	}
}
