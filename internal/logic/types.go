// Package logic contains the pure motor-control core of the e-bike controller.
// This package does no I/O (no GPIO, ADC, serial, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Fault identifies why the controller latched into emergency shutdown.
type Fault int

const (
	FaultNone Fault = iota
	FaultMotorOverheat
	FaultControllerHot
	FaultOverCurrent
	FaultLowBattery
	FaultActuator
	FaultSensor
)

// String returns the banner text shown on the display for the fault.
func (f Fault) String() string {
	switch f {
	case FaultMotorOverheat:
		return "Motor Overheat"
	case FaultControllerHot:
		return "Controller Hot"
	case FaultOverCurrent:
		return "Over Current"
	case FaultLowBattery:
		return "Low Battery"
	case FaultActuator:
		return "Actuator Fault"
	case FaultSensor:
		return "Sensor Fault"
	default:
		return ""
	}
}

// RawInputs is one sample of every input channel as the drivers report it.
// Analog values are ADC codes in [0, FullScale].
type RawInputs struct {
	Throttle       int
	Torque         int
	Battery        int
	MotorTemp      int
	ControllerTemp int

	// Brake lines are active-low on the wire; drivers report them already
	// inverted, so true means the lever is pulled.
	BrakeFront bool
	BrakeRear  bool

	// ChargingLevel is the raw level of the charger-detect line (low = charging).
	ChargingLevel bool
}

// Readings are the calibrated physical quantities for one control tick.
type Readings struct {
	Throttle       float64 // percent, 0..100
	BrakeActive    bool
	Cadence        float64 // crank RPM, >= 0
	CadenceActive  bool
	Torque         float64 // Nm, may be slightly negative at zero load
	Voltage        float64 // pack volts
	BatteryLevel   int     // percent, 0..100
	MotorTemp      float64 // °C
	ControllerTemp float64 // °C
	Charging       bool
}

// SystemState is the controller state, owned by the control task and
// updated in place once per tick.
type SystemState struct {
	Throttle       float64
	BrakeActive    bool
	Cadence        float64
	Torque         float64
	Voltage        float64
	BatteryLevel   int
	MotorTemp      float64
	ControllerTemp float64

	// CommandedCurrent is the forward drive current last sent to the actuator (A).
	CommandedCurrent float64
	Power            float64 // W, display only

	Speed    float64 // km/h
	Distance float64 // km

	AssistLevel int
	Charging    bool

	RegenActive       bool
	EmergencyShutdown bool
	Fault             Fault

	LightsOn   bool
	HornActive bool

	// Time of the last completed control tick.
	UpdatedAt time.Time
}

// Apply copies calibrated readings into the state.
func (s *SystemState) Apply(r Readings) {
	s.Throttle = r.Throttle
	s.BrakeActive = r.BrakeActive
	s.Cadence = r.Cadence
	s.Torque = r.Torque
	s.Voltage = r.Voltage
	s.BatteryLevel = r.BatteryLevel
	s.MotorTemp = r.MotorTemp
	s.ControllerTemp = r.ControllerTemp
	s.Charging = r.Charging
}
