// Package mqtt publishes relay transitions and lifecycle events to a broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/oven-monitor/internal/logic"
)

// Topic is the MQTT topic for relay transitions.
const Topic = "kitchen/oven/relay/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "kitchen/oven/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a relay transition. Errors must not stop the caller.
	Publish(event RelayEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// RelayEvent is a relay transition together with the readings that caused it.
type RelayEvent struct {
	Session     string
	Transition  logic.Transition
	Temperature float64
	Thresholds  logic.Thresholds
	Target      float64
}

// SystemEvent represents a lifecycle event (STARTUP, HEARTBEAT, SHUTDOWN).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // shutdown only
	RawPayload []byte // if set, sent as is
	Retained   bool
}

// Payload is the MQTT message for a relay transition.
type Payload struct {
	Oven OvenPayload `json:"oven"`
}

// OvenPayload contains the transition details.
type OvenPayload struct {
	Session    string  `json:"session"`
	Timestamp  string  `json:"timestamp"`
	Event      string  `json:"event"`
	Relay      string  `json:"relay"`
	PreviousMs int64   `json:"previous_ms"`
	Forced     bool    `json:"forced"`
	Temp       float64 `json:"temperature"`
	Target     float64 `json:"target"`
	Upper      float64 `json:"upper"`
	Lower      float64 `json:"lower"`
}

// EventName returns RELAY_ON or RELAY_OFF.
func EventName(tr logic.Transition) string {
	return "RELAY_" + string(tr.To)
}

// FormatPayload creates the JSON payload for a relay transition.
func FormatPayload(event RelayEvent) ([]byte, error) {
	tr := event.Transition
	payload := Payload{
		Oven: OvenPayload{
			Session:    event.Session,
			Timestamp:  tr.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:      EventName(tr),
			Relay:      string(tr.To),
			PreviousMs: tr.PreviousDuration.Milliseconds(),
			Forced:     tr.Forced,
			Temp:       event.Temperature,
			Target:     event.Target,
			Upper:      event.Thresholds.Upper,
			Lower:      event.Thresholds.Lower,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the message for events without a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// RawPayload takes precedence when set.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}
