package internal

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/ebike-controller/internal/actuator"
	"github.com/sweeney/ebike-controller/internal/adc"
	"github.com/sweeney/ebike-controller/internal/controller"
	"github.com/sweeney/ebike-controller/internal/display"
	"github.com/sweeney/ebike-controller/internal/gpio"
	"github.com/sweeney/ebike-controller/internal/logic"
	"github.com/sweeney/ebike-controller/internal/mqtt"
	"github.com/sweeney/ebike-controller/internal/status"
)

// portRecorder is an in-memory serial port.
type portRecorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (p *portRecorder) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *portRecorder) Close() error { return nil }

// frames splits everything written so far into 4-byte frames.
func (p *portRecorder) frames() [][4]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw := p.buf.Bytes()
	out := make([][4]byte, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		var f [4]byte
		copy(f[:], raw[i:i+4])
		out = append(out, f)
	}
	return out
}

type bike struct {
	cfg     logic.Config
	ctrl    *controller.Controller
	analog  *adc.FakeReader
	bank    *gpio.FakeBank
	port    *portRecorder
	client  *mqtt.FakeClient
	screen  display.Renderer
	tracker *status.Tracker
	start   time.Time
	ticks   int
}

func newBike(t *testing.T) *bike {
	t.Helper()
	cfg := logic.NewConfig(logic.Power500)
	cfg.DividerRatio = 17
	cfg.Kp, cfg.Ki, cfg.Kd = 0, 0, 0

	b := &bike{
		cfg:    cfg,
		analog: adc.NewFakeReader(),
		bank:   gpio.NewFakeBank(),
		port:   &portRecorder{},
		client: mqtt.NewFakeClient(),
		start:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	b.analog.Set(adc.Throttle, cfg.ThrottleMin)
	b.analog.Set(adc.Torque, cfg.TorqueOffset)
	b.analog.Set(adc.Battery, 3416)
	b.analog.Set(adc.MotorTemp, 1024)
	b.analog.Set(adc.ControllerTemp, 1024)

	link := actuator.NewSerial(actuator.NewSerialPortFrom(b.port))
	ctrl, err := controller.New(cfg, controller.Deps{
		ADC:      b.analog,
		GPIO:     b.bank,
		Actuator: link,
		Now:      func() time.Time { return b.now() },
	})
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	b.ctrl = ctrl
	b.screen = display.Multi{display.NewLogRenderer(), mqtt.NewDisplay(b.client)}
	b.tracker = status.NewTracker(b.start, status.Config{Power: 500, Actuator: "serial"})
	return b
}

func (b *bike) now() time.Time {
	return b.start.Add(time.Duration(b.ticks) * b.cfg.TickPeriod)
}

// run advances n control ticks and refreshes the display once at the end,
// as the display loop would.
func (b *bike) run(t *testing.T, n int) logic.SystemState {
	t.Helper()
	for i := 0; i < n; i++ {
		b.step()
	}
	if err := b.screen.Render(display.ScreenFor(b.tracker.Snapshot().State)); err != nil {
		t.Fatalf("render: %v", err)
	}
	return b.ctrl.State()
}

// step runs one control tick.
func (b *bike) step() {
	b.ctrl.Tick(b.now())
	b.tracker.Update(b.ctrl.State(), b.ctrl.Overruns())
	b.ticks++
}

func (b *bike) screens(t *testing.T) []mqtt.ScreenInner {
	t.Helper()
	var out []mqtt.ScreenInner
	for _, m := range b.client.Messages {
		if m.Topic != mqtt.TopicDisplay {
			continue
		}
		var p mqtt.ScreenPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			t.Fatalf("invalid screen payload %s: %v", m.Payload, err)
		}
		out = append(out, p.Display)
	}
	return out
}

func lineTexts(s mqtt.ScreenInner) string {
	var parts []string
	for _, l := range s.Lines {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, " | ")
}

// TestIntegrationRide tests the complete flow from inputs through the
// serial actuator to the MQTT head unit using fakes.
func TestIntegrationRide(t *testing.T) {
	b := newBike(t)

	if err := b.screen.Render(display.Startup(b.cfg.Power)); err != nil {
		t.Fatalf("render startup: %v", err)
	}

	// Idle, then half throttle.
	b.run(t, 5)
	b.analog.Set(adc.Throttle, 2000)
	s := b.run(t, 5)
	if s.CommandedCurrent != 7.5 {
		t.Fatalf("expected 7.5 A, got %v", s.CommandedCurrent)
	}

	// Pedal at 60 RPM for a second so speed and distance move.
	for i := 0; i < 100; i++ {
		if i%5 == 0 {
			b.ctrl.OnCadenceEdge(b.now())
		}
		b.step()
	}
	s = b.run(t, 1)
	if s.Cadence == 0 || s.Speed == 0 {
		t.Fatalf("expected motion, got cadence=%v speed=%v", s.Cadence, s.Speed)
	}

	// Brake: regen engages once and drive frames stop.
	b.bank.Set(gpio.BrakeFront, true)
	s = b.run(t, 10)
	if !s.RegenActive || s.CommandedCurrent != 0 {
		t.Fatalf("expected regen, got regen=%v current=%v", s.RegenActive, s.CommandedCurrent)
	}
	b.bank.Set(gpio.BrakeFront, false)
	b.run(t, 1)

	frames := b.port.frames()
	if frames[0] != actuator.EncodeFrame(0, actuator.ModeDrive) {
		t.Errorf("expected zero drive frame first, got % x", frames[0])
	}
	drive75 := [4]byte{actuator.CmdDrive, 75, 0, 0}
	found := false
	for _, f := range frames {
		found = found || f == drive75
	}
	if !found {
		t.Errorf("expected a 7.5 A drive frame % x", drive75)
	}

	var regen [][4]byte
	for _, f := range frames {
		if f[0] == actuator.CmdRegen {
			regen = append(regen, f)
		}
	}
	wantRegen := [][4]byte{
		actuator.EncodeFrame(b.cfg.RegenCurrent(), actuator.ModeRegen),
		actuator.EncodeFrame(0, actuator.ModeRegen),
	}
	if len(regen) != 2 || regen[0] != wantRegen[0] || regen[1] != wantRegen[1] {
		t.Errorf("regen frames: got % x, want % x", regen, wantRegen)
	}

	screens := b.screens(t)
	if len(screens) < 2 || screens[0].Kind != "startup" {
		t.Fatalf("expected startup then dashboards, got %+v", screens)
	}
	last := screens[len(screens)-1]
	if last.Kind != "dashboard" || !strings.Contains(lineTexts(last), "Batt: 49%") {
		t.Errorf("unexpected last dashboard: %s", lineTexts(last))
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(b.tracker.Snapshot()), &sj); err != nil {
		t.Fatalf("status JSON: %v", err)
	}
	if sj.Status.Ride.SpeedKmh <= 0 {
		t.Errorf("expected speed in status, got %v", sj.Status.Ride.SpeedKmh)
	}
	if d := b.tracker.Snapshot().State.Distance; d <= 0 {
		t.Errorf("expected distance to accumulate, got %v", d)
	}
	if sj.Status.Battery.Level != 49 {
		t.Errorf("expected battery 49 in status, got %d", sj.Status.Battery.Level)
	}
}

// TestIntegrationFaultWhileDisconnected verifies an emergency screen raised
// while the broker is away reaches the head unit on reconnect.
func TestIntegrationFaultWhileDisconnected(t *testing.T) {
	b := newBike(t)
	b.analog.Set(adc.Throttle, 2000)
	b.run(t, 3)

	b.client.SetConnected(false)
	b.analog.Set(adc.MotorTemp, 3481)
	s := b.run(t, 3)
	if !s.EmergencyShutdown {
		t.Fatal("expected emergency shutdown")
	}
	last := b.port.frames()
	if f := last[len(last)-1]; f != actuator.EncodeFrame(0, actuator.ModeDrive) {
		t.Errorf("expected zero drive frame after fault, got % x", f)
	}

	// Dashboards while away are dropped; the emergency screen is held.
	before := len(b.screens(t))
	b.client.SetConnected(true)
	b.analog.Set(adc.MotorTemp, 1024)
	b.run(t, 1)

	screens := b.screens(t)[before:]
	if len(screens) != 1 || screens[0].Kind != "emergency" {
		t.Fatalf("expected one replayed emergency screen, got %+v", screens)
	}
	if !strings.Contains(lineTexts(screens[0]), "Motor Overheat") {
		t.Errorf("expected fault reason, got %s", lineTexts(screens[0]))
	}
	msg := b.client.Messages[len(b.client.Messages)-1]
	if msg.QoS != 1 || !msg.Retained {
		t.Errorf("emergency screen: got qos=%d retained=%v", msg.QoS, msg.Retained)
	}

	// Latched until reset.
	b.ctrl.ResetFault()
	s = b.run(t, 1)
	if s.EmergencyShutdown || s.CommandedCurrent != 7.5 {
		t.Errorf("expected drive after reset, got shutdown=%v current=%v", s.EmergencyShutdown, s.CommandedCurrent)
	}
	if got := b.screens(t); got[len(got)-1].Kind != "dashboard" {
		t.Errorf("expected dashboard after reset, got %s", got[len(got)-1].Kind)
	}
}

// TestIntegrationShutdown verifies the shutdown path leaves the motor at zero
// and the head unit on the shutdown screen.
func TestIntegrationShutdown(t *testing.T) {
	b := newBike(t)
	b.analog.Set(adc.Throttle, 2000)
	b.bank.Set(gpio.BrakeRear, true)
	b.run(t, 2)

	if err := b.ctrl.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := b.screen.Render(display.Shutdown()); err != nil {
		t.Fatalf("render: %v", err)
	}

	frames := b.port.frames()
	n := len(frames)
	if frames[n-2] != actuator.EncodeFrame(0, actuator.ModeRegen) || frames[n-1] != actuator.EncodeFrame(0, actuator.ModeDrive) {
		t.Errorf("expected regen release then zero drive, got % x % x", frames[n-2], frames[n-1])
	}

	screens := b.screens(t)
	if screens[len(screens)-1].Kind != "shutdown" {
		t.Errorf("expected shutdown screen last, got %s", screens[len(screens)-1].Kind)
	}

	b.run(t, 1)
	if len(b.port.frames()) != n {
		t.Error("no frames expected after shutdown")
	}
}
