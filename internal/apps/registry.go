// Package apps holds the read-only set of tenant apps known at startup and
// the sources they are loaded from.
package apps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/radudiaconu0/sockudo/internal/domain"
)

// Registry resolves apps by id and by key. It is built once and never mutated.
type Registry struct {
	apps  []domain.App
	byID  map[string]domain.App
	byKey map[string]domain.App
}

// NewRegistry builds a registry from records. Disabled apps are skipped;
// an empty id or key, or a duplicate id or key among enabled apps, is an error.
func NewRegistry(records []domain.App) (*Registry, error) {
	r := &Registry{
		byID:  make(map[string]domain.App, len(records)),
		byKey: make(map[string]domain.App, len(records)),
	}

	for _, app := range records {
		if !app.Enabled {
			continue
		}
		if strings.TrimSpace(app.ID) == "" {
			return nil, fmt.Errorf("app with key %q has an empty id", app.Key)
		}
		if strings.TrimSpace(app.Key) == "" {
			return nil, fmt.Errorf("app %q has an empty key", app.ID)
		}
		if _, dup := r.byID[app.ID]; dup {
			return nil, fmt.Errorf("duplicate app id %q", app.ID)
		}
		if _, dup := r.byKey[app.Key]; dup {
			return nil, fmt.Errorf("duplicate app key %q", app.Key)
		}
		r.byID[app.ID] = app
		r.byKey[app.Key] = app
		r.apps = append(r.apps, app)
	}

	sort.Slice(r.apps, func(i, j int) bool { return r.apps[i].ID < r.apps[j].ID })
	return r, nil
}

func (r *Registry) ByID(id string) (domain.App, error) {
	app, ok := r.byID[id]
	if !ok {
		return domain.App{}, fmt.Errorf("app id %q: %w", id, domain.ErrAppNotFound)
	}
	return app, nil
}

func (r *Registry) ByKey(key string) (domain.App, error) {
	app, ok := r.byKey[key]
	if !ok {
		return domain.App{}, fmt.Errorf("app key %q: %w", key, domain.ErrAppNotFound)
	}
	return app, nil
}

// Resolve looks keyOrID up as a key first and falls back to an id, which is
// how the websocket route identifies its app.
func (r *Registry) Resolve(keyOrID string) (domain.App, error) {
	if app, ok := r.byKey[keyOrID]; ok {
		return app, nil
	}
	if app, ok := r.byID[keyOrID]; ok {
		return app, nil
	}
	return domain.App{}, fmt.Errorf("app %q: %w", keyOrID, domain.ErrAppNotFound)
}

// Apps returns the enabled apps sorted by id.
func (r *Registry) Apps() []domain.App {
	return append([]domain.App(nil), r.apps...)
}

func (r *Registry) Len() int { return len(r.apps) }
