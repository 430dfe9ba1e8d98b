package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ride          RideJSON     `json:"ride"`
	Battery       BatteryJSON  `json:"battery"`
	Drive         DriveJSON    `json:"drive"`
	Safety        SafetyJSON   `json:"safety"`
	Lights        bool         `json:"lights"`
	Horn          bool         `json:"horn"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// RideJSON is the rider-facing motion data.
type RideJSON struct {
	SpeedKmh    float64 `json:"speed_kmh"`
	DistanceKm  float64 `json:"distance_km"`
	CadenceRPM  float64 `json:"cadence_rpm"`
	TorqueNm    float64 `json:"torque_nm"`
	ThrottlePct float64 `json:"throttle_pct"`
	Brake       bool    `json:"brake"`
	AssistLevel int     `json:"assist_level"`
}

// BatteryJSON is the pack state.
type BatteryJSON struct {
	Voltage  float64 `json:"voltage"`
	Level    int     `json:"level_pct"`
	Charging bool    `json:"charging"`
}

// DriveJSON is the motor drive state.
type DriveJSON struct {
	CurrentA        float64 `json:"current_a"`
	PowerW          float64 `json:"power_w"`
	Regen           bool    `json:"regen"`
	MotorTempC      float64 `json:"motor_temp_c"`
	ControllerTempC float64 `json:"controller_temp_c"`
}

// SafetyJSON reports the shutdown latch.
type SafetyJSON struct {
	EmergencyShutdown bool   `json:"emergency_shutdown"`
	Fault             string `json:"fault,omitempty"`
	Overruns          uint64 `json:"overruns"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	PowerW        int     `json:"power_w"`
	MaxCurrentA   float64 `json:"max_current_a"`
	MaxSpeedKmh   float64 `json:"max_speed_kmh"`
	Actuator      string  `json:"actuator"`
	LatchShutdown bool    `json:"latch_shutdown"`
	TickMs        int64   `json:"tick_ms"`
	DisplayMs     int64   `json:"display_ms"`
	SafetyMs      int64   `json:"safety_ms"`
	Broker        string  `json:"broker"`
	HTTPAddr      string  `json:"http_addr"`
}

// round2 rounds to two decimal places for output.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildInner(snap Snapshot) StatusInner {
	s := snap.State
	return StatusInner{
		Ride: RideJSON{
			SpeedKmh:    round2(s.Speed),
			DistanceKm:  round2(s.Distance),
			CadenceRPM:  round2(s.Cadence),
			TorqueNm:    round2(s.Torque),
			ThrottlePct: round2(s.Throttle),
			Brake:       s.BrakeActive,
			AssistLevel: s.AssistLevel,
		},
		Battery: BatteryJSON{
			Voltage:  round2(s.Voltage),
			Level:    s.BatteryLevel,
			Charging: s.Charging,
		},
		Drive: DriveJSON{
			CurrentA:        round2(s.CommandedCurrent),
			PowerW:          round2(s.Power),
			Regen:           s.RegenActive,
			MotorTempC:      round2(s.MotorTemp),
			ControllerTempC: round2(s.ControllerTemp),
		},
		Safety: SafetyJSON{
			EmergencyShutdown: s.EmergencyShutdown,
			Fault:             s.Fault.String(),
			Overruns:          snap.Overruns,
		},
		Lights:        s.LightsOn,
		Horn:          s.HornActive,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PowerW:        snap.Config.Power,
			MaxCurrentA:   snap.Config.MaxCurrent,
			MaxSpeedKmh:   snap.Config.MaxSpeed,
			Actuator:      snap.Config.Actuator,
			LatchShutdown: snap.Config.LatchShutdown,
			TickMs:        snap.Config.TickMs,
			DisplayMs:     snap.Config.DisplayMs,
			SafetyMs:      snap.Config.SafetyMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
