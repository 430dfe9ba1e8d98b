package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/ebike-controller/internal/display"
	"github.com/sweeney/ebike-controller/internal/logic"
)

func TestTopics(t *testing.T) {
	if TopicDisplay != "ebike/controller/display" {
		t.Errorf("unexpected display topic: %s", TopicDisplay)
	}
	if TopicSystem != "ebike/controller/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "STARTUP",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"STARTUP"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 11, 30, 45, 0, loc),
		Event:     "FAULT",
	})

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Timestamp != "2026-02-03T10:30:45Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.System.Timestamp)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "ignored", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFormatScreenExactJSON(t *testing.T) {
	payload, err := FormatScreen(display.Emergency(logic.FaultMotorOverheat))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"display":{"kind":"emergency","lines":[{"text":"EMERGENCY STOP","x":0,"y":0},{"text":"Motor Overheat","x":0,"y":16}]}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatScreenEmptyLines(t *testing.T) {
	payload, _ := FormatScreen(display.Screen{Kind: display.KindShutdown})
	expected := `{"display":{"kind":"shutdown","lines":[]}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload: %s", payload)
	}
}

func TestPublisherPublishSystem(t *testing.T) {
	client := NewFakeClient()
	p := NewPublisher(client)

	err := p.PublishSystem(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "STARTUP",
		Retained:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.Messages))
	}
	msg := client.Messages[0]
	if msg.Topic != TopicSystem || msg.QoS != 1 || !msg.Retained {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestPublisherPublishSystemError(t *testing.T) {
	client := NewFakeClient()
	client.PublishError = errors.New("broker gone")

	if err := NewPublisher(client).PublishSystem(SystemEvent{Event: "SHUTDOWN"}); err == nil {
		t.Error("expected error")
	}
}

func dashboard(speed float64) display.Screen {
	return display.Dashboard(logic.SystemState{Speed: speed})
}

func TestDisplayPublishesRetained(t *testing.T) {
	client := NewFakeClient()
	d := NewDisplay(client)

	if err := d.Render(dashboard(12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.Messages))
	}
	msg := client.Messages[0]
	if msg.Topic != TopicDisplay || msg.QoS != 0 || !msg.Retained {
		t.Errorf("unexpected dashboard message: %+v", msg)
	}

	d.Render(display.Emergency(logic.FaultOverCurrent))
	if got := client.Messages[1].QoS; got != 1 {
		t.Errorf("emergency screen should be QoS 1, got %d", got)
	}
}

func TestDisplaySkipsRepeats(t *testing.T) {
	client := NewFakeClient()
	d := NewDisplay(client)

	d.Render(dashboard(12))
	d.Render(dashboard(12))
	d.Render(dashboard(13))
	d.Render(dashboard(13))

	if len(client.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(client.Messages))
	}
}

func TestDisplayBuffersUrgentWhileDisconnected(t *testing.T) {
	client := NewFakeClient()
	client.SetConnected(false)
	d := NewDisplay(client)

	d.Render(dashboard(12))
	d.Render(display.Emergency(logic.FaultMotorOverheat))
	d.Render(display.Emergency(logic.FaultMotorOverheat))
	d.Render(display.Shutdown())

	if len(client.Messages) != 0 {
		t.Fatalf("nothing should be published while disconnected, got %d", len(client.Messages))
	}
	if d.Pending() != 2 {
		t.Fatalf("expected emergency and shutdown buffered, got %d", d.Pending())
	}

	client.SetConnected(true)
	if err := d.Render(display.Shutdown()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.Messages) != 2 {
		t.Fatalf("expected 2 replayed messages, got %d", len(client.Messages))
	}
	var first ScreenPayload
	json.Unmarshal(client.Messages[0].Payload, &first)
	if first.Display.Kind != "emergency" {
		t.Errorf("expected emergency replayed first, got %s", first.Display.Kind)
	}
	var second ScreenPayload
	json.Unmarshal(client.Messages[1].Payload, &second)
	if second.Display.Kind != "shutdown" {
		t.Errorf("expected shutdown replayed second, got %s", second.Display.Kind)
	}
	if d.Pending() != 0 {
		t.Errorf("expected buffer drained, got %d", d.Pending())
	}
}

func TestDisplayBuffersFailedUrgentPublish(t *testing.T) {
	client := NewFakeClient()
	client.PublishError = errors.New("timeout")
	d := NewDisplay(client)

	if err := d.Render(display.Emergency(logic.FaultLowBattery)); err == nil {
		t.Error("expected publish error")
	}
	if err := d.Render(dashboard(10)); err == nil {
		t.Error("expected replay error")
	}
	if d.Pending() != 1 {
		t.Fatalf("expected 1 buffered screen, got %d", d.Pending())
	}

	client.PublishError = nil
	if err := d.Render(dashboard(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Messages) != 2 {
		t.Errorf("expected replayed emergency then dashboard, got %d messages", len(client.Messages))
	}
}

func TestDisplayRepublishesAfterReconnect(t *testing.T) {
	client := NewFakeClient()
	d := NewDisplay(client)

	d.Render(dashboard(12))
	client.SetConnected(false)
	d.Render(dashboard(12))
	client.SetConnected(true)
	d.Render(dashboard(12))

	if len(client.Messages) != 2 {
		t.Errorf("expected dashboard republished after reconnect, got %d messages", len(client.Messages))
	}
}

func TestFakeClientReset(t *testing.T) {
	client := NewFakeClient()
	client.Publish("a", 0, false, nil)
	client.PublishError = errors.New("x")
	client.Reset()

	if len(client.Messages) != 0 || client.PublishError != nil {
		t.Errorf("expected reset client, got %+v", client)
	}
	client.Close()
	if !client.Closed {
		t.Error("expected closed")
	}
}
