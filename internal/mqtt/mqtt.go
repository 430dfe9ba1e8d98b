// Package mqtt publishes controller screens and lifecycle events to a
// handlebar head unit over MQTT, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ebike-controller/internal/display"
)

// TopicDisplay is the MQTT topic the head unit renders from.
const TopicDisplay = "ebike/controller/display"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "ebike/controller/system"

// Client is the subset of a broker connection the publishers need.
type Client interface {
	// Publish sends payload and waits for the broker to accept it.
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// IsConnected reports whether the connection is currently up.
	IsConnected() bool

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, fault).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "FAULT"
	Reason     string // e.g., "SIGTERM", "Motor Overheat"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// ScreenPayload is the MQTT message payload for one rendered screen.
type ScreenPayload struct {
	Display ScreenInner `json:"display"`
}

// ScreenInner carries the screen kind and positioned text lines.
type ScreenInner struct {
	Kind  string         `json:"kind"`
	Lines []display.Line `json:"lines"`
}

// FormatScreen creates the JSON payload for a screen.
func FormatScreen(s display.Screen) ([]byte, error) {
	lines := s.Lines
	if lines == nil {
		lines = []display.Line{}
	}
	return json.Marshal(ScreenPayload{
		Display: ScreenInner{Kind: string(s.Kind), Lines: lines},
	})
}

// Publisher sends lifecycle events.
type Publisher struct {
	client Client
}

// NewPublisher creates a Publisher over client.
func NewPublisher(client Client) *Publisher {
	return &Publisher{client: client}
}

// PublishSystem sends a system lifecycle event at QoS 1.
func (p *Publisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	return p.client.Publish(TopicSystem, 1, event.Retained, payload)
}
