package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/oven-monitor/internal/logic"
)

func sampleEvent() RelayEvent {
	return RelayEvent{
		Session: "0b4c7d2e-session",
		Transition: logic.Transition{
			Timestamp:        time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
			From:             logic.StateOff,
			To:               logic.StateOn,
			PreviousDuration: 100250 * time.Millisecond,
		},
		Temperature: 299.75,
		Target:      300,
		Thresholds:  logic.Thresholds{Upper: 300, Lower: 300},
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(sampleEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	o := parsed.Oven
	if o.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", o.Timestamp)
	}
	if o.Event != "RELAY_ON" || o.Relay != "ON" {
		t.Errorf("unexpected event/relay: %s/%s", o.Event, o.Relay)
	}
	if o.PreviousMs != 100250 {
		t.Errorf("unexpected previous_ms: %d", o.PreviousMs)
	}
	if o.Session != "0b4c7d2e-session" {
		t.Errorf("unexpected session: %s", o.Session)
	}
	if o.Temp != 299.75 || o.Target != 300 || o.Upper != 300 || o.Lower != 300 {
		t.Errorf("unexpected readings: %+v", o)
	}
	if o.Forced {
		t.Error("expected forced=false")
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ev := sampleEvent()
	ev.Transition.Timestamp = time.Date(2026, 2, 2, 23, 0, 0, 0, loc)

	payload, err := FormatPayload(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	json.Unmarshal(payload, &parsed)
	if parsed.Oven.Timestamp != "2026-02-02T22:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Oven.Timestamp)
	}
}

func TestEventName(t *testing.T) {
	if got := EventName(logic.Transition{To: logic.StateOff}); got != "RELAY_OFF" {
		t.Errorf("got %s, want RELAY_OFF", got)
	}
	if got := EventName(logic.Transition{To: logic.StateOn}); got != "RELAY_ON" {
		t.Errorf("got %s, want RELAY_ON", got)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("got %s\nwant %s", payload, want)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"system":{"event":"OFFLINE"}}` {
		t.Errorf("unexpected will payload: %s", payload)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "kitchen/oven/relay/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "kitchen/oven/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	if err := f.Publish(sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Events) != 1 || len(f.Payloads) != 1 {
		t.Fatalf("expected 1 event and payload, got %d/%d", len(f.Events), len(f.Payloads))
	}
	if f.Events[0].Transition.To != logic.StateOn {
		t.Errorf("unexpected event: %+v", f.Events[0])
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")
	f.PublishSystemError = errors.New("simulated error")

	if err := f.Publish(sampleEvent()); err == nil {
		t.Error("expected error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err == nil {
		t.Error("expected error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("expected nothing recorded on error")
	}
}

func TestFakePublisherSystemEventOrder(t *testing.T) {
	f := NewFakePublisher()
	for _, name := range []string{"STARTUP", "HEARTBEAT", "SHUTDOWN"} {
		f.PublishSystem(SystemEvent{Event: name, Timestamp: time.Now()})
	}
	got := f.SystemEventNames()
	if len(got) != 3 || got[0] != "STARTUP" || got[1] != "HEARTBEAT" || got[2] != "SHUTDOWN" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestFakePublisherClose(t *testing.T) {
	f := NewFakePublisher()
	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("expected closed")
	}
}
