package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PublishRequest is the body of a server-side publish call.
type PublishRequest struct {
	Name     string          `json:"name"`
	Data     string          `json:"data"`
	Channel  string          `json:"channel,omitempty"`
	Channels []string        `json:"channels,omitempty"`
	SocketID string          `json:"socket_id,omitempty"`
	Info     json.RawMessage `json:"info,omitempty"`
}

// Targets returns the request's channels in order with duplicates and blanks
// removed. Channel and Channels are merged.
func (r PublishRequest) Targets() []string {
	seen := make(map[string]struct{}, len(r.Channels)+1)
	targets := make([]string, 0, len(r.Channels)+1)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	if r.Channel != "" {
		add(r.Channel)
	}
	for _, ch := range r.Channels {
		add(ch)
	}
	return targets
}

// Validate reports ErrInvalidPublish when the request has no event name or
// no target channel.
func (r PublishRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPublish)
	}
	if len(r.Targets()) == 0 {
		return fmt.Errorf("%w: at least one channel is required", ErrInvalidPublish)
	}
	return nil
}

// Event converts the request into the adapter-level event.
func (r PublishRequest) Event() Event {
	return Event{
		Name:            r.Name,
		Data:            r.Data,
		Channels:        r.Targets(),
		ExcludeSocketID: r.SocketID,
	}
}

// Event is a message addressed to one or more channels of an app.
type Event struct {
	Name            string
	Data            string
	Channels        []string
	ExcludeSocketID string
}

// Envelope is the single-channel view of an Event handed to a namespace.
type Envelope struct {
	Event           string
	Channel         string
	Data            string
	ExcludeSocketID string
}

// ForChannel builds the envelope for one of the event's channels.
func (e Event) ForChannel(channel string) Envelope {
	return Envelope{
		Event:           e.Name,
		Channel:         channel,
		Data:            e.Data,
		ExcludeSocketID: e.ExcludeSocketID,
	}
}

// Payload encodes the frame delivered to subscribers.
func (e Envelope) Payload() ([]byte, error) {
	return json.Marshal(ServerFrame{Event: e.Event, Channel: e.Channel, Data: e.Data})
}
