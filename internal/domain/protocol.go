package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Protocol event names.
const (
	EventConnectionEstablished = "pusher:connection_established"
	EventError                 = "pusher:error"
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventSubscribe             = "pusher:subscribe"
	EventUnsubscribe           = "pusher:unsubscribe"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	EventUnsubscribed          = "pusher_internal:unsubscribed"
)

// ErrorCodeAppNotFound is sent in a pusher:error frame when a client connects
// with a key that resolves to no configured application.
const ErrorCodeAppNotFound = 4001

// ClientFrame is an inbound protocol frame.
type ClientFrame struct {
	Event   string     `json:"event"`
	Channel string     `json:"channel,omitempty"`
	Data    *FrameData `json:"data,omitempty"`
}

// FrameData is the embedded data of a client frame. Known fields are typed;
// everything else lands in Extra.
type FrameData struct {
	Channel     string
	Auth        string
	ChannelData string
	Extra       map[string]json.RawMessage
}

// TargetChannel returns the channel named in the embedded data, falling back
// to the frame-level channel.
func (f ClientFrame) TargetChannel() string {
	if f.Data != nil && f.Data.Channel != "" {
		return f.Data.Channel
	}
	return f.Channel
}

// ParseClientFrame decodes a text frame. A frame without an event name is
// rejected with ErrInvalidFrame.
func ParseClientFrame(raw []byte) (ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return ClientFrame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if frame.Event == "" {
		return ClientFrame{}, fmt.Errorf("%w: missing event", ErrInvalidFrame)
	}
	return frame, nil
}

func (d *FrameData) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)

	// Some clients send data as a JSON-encoded string.
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(s)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("frame data is not an object: %w", err)
	}

	*d = FrameData{}
	for key, value := range fields {
		var target *string
		switch key {
		case "channel":
			target = &d.Channel
		case "auth":
			target = &d.Auth
		case "channel_data":
			target = &d.ChannelData
		}
		if target != nil {
			if err := json.Unmarshal(value, target); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[key] = value
	}
	return nil
}

func (d FrameData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+3)
	for key, value := range d.Extra {
		out[key] = value
	}
	if d.Channel != "" {
		out["channel"] = d.Channel
	}
	if d.Auth != "" {
		out["auth"] = d.Auth
	}
	if d.ChannelData != "" {
		out["channel_data"] = d.ChannelData
	}
	return json.Marshal(out)
}

// ServerFrame is an outbound protocol frame.
type ServerFrame struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ConnectionEstablished is the data of the pusher:connection_established frame.
type ConnectionEstablished struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

// ErrorData is the data of a pusher:error frame.
type ErrorData struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}
