// Package status provides a thread-safe status tracker for the e-bike controller.
// The control loop writes it once per tick; the display loop, the MQTT head
// unit and the HTTP handlers read consistent snapshots from it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ebike-controller/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains controller configuration for display.
type Config struct {
	Power         int
	MaxCurrent    float64
	MaxSpeed      float64
	Actuator      string // "pwm" or "serial"
	LatchShutdown bool
	TickMs        int64
	DisplayMs     int64
	SafetyMs      int64
	Broker        string
	HTTPAddr      string
}

// Snapshot is a point-in-time view of controller state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	State         logic.SystemState
	Overruns      uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the latest controller state and overrun count.
// Called from runLoop after every control tick and safety sweep.
func (t *Tracker) Update(state logic.SystemState, overruns uint64) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Overruns = overruns
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
