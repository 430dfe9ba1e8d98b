package logic

import (
	"errors"
	"fmt"
	"time"
)

// Fixed hardware and calibration constants.
const (
	FullScale        = 4095 // 12-bit ADC code range
	ADCReference     = 3.3  // volts at FullScale
	TorqueNmPerCount = 0.08

	PackFullVoltage  = 54.6 // 13S fully charged
	PackEmptyVoltage = 39.0 // 13S empty

	PulsesPerRevolution = 20
	CadenceDebounce     = 50 * time.Millisecond
	CadenceTimeout      = 1000 * time.Millisecond

	PedalingThreshold   = 10.0 // RPM
	TorqueThreshold     = 1.0  // Nm
	TorqueGain          = 2.5  // A per Nm
	CadenceNormal       = 60.0 // RPM
	CadenceFactorLimit  = 1.5
	CadenceAssistFactor = 0.6

	FieldWeakeningStart = 0.8

	CriticalBattery  = 5  // percent
	RegenBatteryMax  = 95 // percent
	RegenCurrentCap  = 5.0
	RegenCurrentFrac = 0.3

	MotorTempLimit      = 80.0
	ControllerTempLimit = 70.0
	OverCurrentFactor   = 1.2
)

// PowerClass is the rated motor power in watts.
type PowerClass int

const (
	Power250  PowerClass = 250
	Power500  PowerClass = 500
	Power1000 PowerClass = 1000
)

// Limits returns the current (A) and speed (km/h) limits for the class.
// Unknown classes get the 1000 W limits.
func (p PowerClass) Limits() (maxCurrent, maxSpeed float64) {
	switch p {
	case Power250:
		return 10.0, 25.0
	case Power500:
		return 15.0, 32.0
	default:
		return 25.0, 45.0
	}
}

// Config is the controller configuration. It is immutable after NewConfig.
type Config struct {
	Power      PowerClass
	MaxCurrent float64 // A
	MaxSpeed   float64 // km/h

	WheelCircumference float64 // m

	Kp, Ki, Kd float64

	// IntegralLimit bounds the speed-loop integral term. 0 leaves it unbounded.
	IntegralLimit float64

	// LatchShutdown keeps emergency shutdown latched until ResetFault even
	// after every trigger clears. When false the latch clears on the first
	// clean safety check.
	LatchShutdown bool

	ThrottleMin  int
	ThrottleMax  int
	TorqueOffset int
	DividerRatio float64

	AssistMultipliers []float64
	InitialAssist     int

	TickPeriod    time.Duration
	DisplayPeriod time.Duration
	SafetyPeriod  time.Duration
	HornDuration  time.Duration
}

// NewConfig returns the default configuration for the given motor class.
func NewConfig(power PowerClass) Config {
	maxCurrent, maxSpeed := power.Limits()
	return Config{
		Power:              power,
		MaxCurrent:         maxCurrent,
		MaxSpeed:           maxSpeed,
		WheelCircumference: 2.2,
		Kp:                 0.8,
		Ki:                 0.05,
		Kd:                 0.1,
		LatchShutdown:      true,
		ThrottleMin:        200,
		ThrottleMax:        3800,
		TorqueOffset:       1800,
		DividerRatio:       5.7,
		AssistMultipliers:  []float64{0.7, 1.0, 1.3},
		InitialAssist:      2,
		TickPeriod:         10 * time.Millisecond,
		DisplayPeriod:      100 * time.Millisecond,
		SafetyPeriod:       1000 * time.Millisecond,
		HornDuration:       1000 * time.Millisecond,
	}
}

// Validate reports calibration values the control law cannot work with.
func (c Config) Validate() error {
	if c.MaxCurrent <= 0 || c.MaxSpeed <= 0 {
		return fmt.Errorf("limits must be positive: current=%v speed=%v", c.MaxCurrent, c.MaxSpeed)
	}
	if c.ThrottleMax <= c.ThrottleMin {
		return fmt.Errorf("throttle calibration: max %d must exceed min %d", c.ThrottleMax, c.ThrottleMin)
	}
	if c.WheelCircumference <= 0 {
		return fmt.Errorf("wheel circumference must be positive, got %v", c.WheelCircumference)
	}
	if len(c.AssistMultipliers) == 0 {
		return errors.New("assist multiplier table is empty")
	}
	if c.IntegralLimit < 0 {
		return fmt.Errorf("integral limit must not be negative, got %v", c.IntegralLimit)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive, got %v", c.TickPeriod)
	}
	return nil
}

// ClampAssist limits an assist level to the configured table.
func (c Config) ClampAssist(level int) int {
	if level < 1 {
		return 1
	}
	if level > len(c.AssistMultipliers) {
		return len(c.AssistMultipliers)
	}
	return level
}

// RegenCurrent is the braking current commanded while regen is active.
func (c Config) RegenCurrent() float64 {
	return min(RegenCurrentCap, RegenCurrentFrac*c.MaxCurrent)
}
