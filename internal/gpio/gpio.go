// Package gpio provides digital input/output and edge events with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Channel names a logical digital line.
type Channel int

const (
	BrakeFront Channel = iota
	BrakeRear
	Charging
	Headlight
	Taillight
	Horn
)

func (c Channel) String() string {
	switch c {
	case BrakeFront:
		return "brake-front"
	case BrakeRear:
		return "brake-rear"
	case Charging:
		return "charging"
	case Headlight:
		return "headlight"
	case Taillight:
		return "taillight"
	case Horn:
		return "horn"
	default:
		return "unknown"
	}
}

// Bank reads and drives the controller's digital lines.
type Bank interface {
	// ReadDigital returns the logical state of an input.
	// Brake lines are reported as true when the lever is pulled.
	// The charging line is reported at its raw level (low = charging).
	ReadDigital(ch Channel) (bool, error)

	// WriteDigital drives an output line.
	WriteDigital(ch Channel, on bool) error

	// Close releases GPIO resources.
	Close() error
}

// EdgeHandler is called for every edge on a watched line.
// It runs on the watcher's goroutine and must not block.
type EdgeHandler func(ts time.Time)

// Watcher delivers edge events for input lines.
type Watcher interface {
	// Watch calls h on each rising edge of the line at offset.
	Watch(offset int, h EdgeHandler) error

	// Close stops all watches.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinBrakeFront = 12
	DefaultPinBrakeRear  = 13
	DefaultPinCadence    = 14
	DefaultPinCharging   = 5
	DefaultPinHeadlight  = 25
	DefaultPinTaillight  = 26
	DefaultPinHorn       = 27

	DefaultPinAssistUp   = 16
	DefaultPinAssistDown = 20
	DefaultPinLights     = 21
	DefaultPinHornButton = 24
)

// Pins maps each Bank channel to a BCM line offset.
type Pins map[Channel]int

// DefaultPins returns the standard wiring.
func DefaultPins() Pins {
	return Pins{
		BrakeFront: DefaultPinBrakeFront,
		BrakeRear:  DefaultPinBrakeRear,
		Charging:   DefaultPinCharging,
		Headlight:  DefaultPinHeadlight,
		Taillight:  DefaultPinTaillight,
		Horn:       DefaultPinHorn,
	}
}

// IsOutput reports whether the channel is driven by the controller.
func (c Channel) IsOutput() bool {
	return c == Headlight || c == Taillight || c == Horn
}
