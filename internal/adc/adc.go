// Package adc provides analog input reading with hardware abstraction.
// The real implementation samples ADS1115 converters over I²C.
// The fake implementation allows testing without hardware.
package adc

// Channel names a logical analog input.
type Channel int

const (
	Throttle Channel = iota
	Torque
	Battery
	MotorTemp
	ControllerTemp
)

func (c Channel) String() string {
	switch c {
	case Throttle:
		return "throttle"
	case Torque:
		return "torque"
	case Battery:
		return "battery"
	case MotorTemp:
		return "motor-temp"
	case ControllerTemp:
		return "controller-temp"
	default:
		return "unknown"
	}
}

// FullScale is the largest code ReadAnalog returns (12-bit, 3.3 V reference).
const FullScale = 4095

// Reference is the input voltage that maps to FullScale.
const Reference = 3.3

// Reader samples analog inputs.
type Reader interface {
	// ReadAnalog returns the channel's level as a code in [0, FullScale].
	ReadAnalog(ch Channel) (int, error)

	// Close releases ADC resources.
	Close() error
}

// codeFor converts a measured input voltage to a clamped FullScale code.
func codeFor(volts float64) int {
	code := int(volts / Reference * FullScale)
	if code < 0 {
		return 0
	}
	if code > FullScale {
		return FullScale
	}
	return code
}
