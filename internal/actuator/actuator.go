// Package actuator turns a commanded motor current into a transport write.
//
// Two backends exist: PWM maps the current onto a duty fraction, Serial
// encodes a 4-byte command frame. The backend is chosen once when the
// controller is built; callers only see the Actuator interface.
package actuator

import (
	"fmt"
	"math"

	"github.com/sweeney/ebike-controller/internal/logic"
)

// Mode is the kind of current being commanded.
type Mode int

const (
	ModeDrive Mode = iota
	ModeRegen
)

func (m Mode) String() string {
	switch m {
	case ModeDrive:
		return "drive"
	case ModeRegen:
		return "regen"
	default:
		return "unknown"
	}
}

// Actuator accepts a commanded current.
type Actuator interface {
	// Apply commands current amperes in the given mode. Errors wrap
	// logic.ErrActuatorTransport.
	Apply(current float64, mode Mode) error
}

// DutySetter is a PWM output.
type DutySetter interface {
	// SetDuty sets the duty fraction in [0, 1].
	SetDuty(fraction float64) error
}

// FrameSender is a serial motor-controller link.
type FrameSender interface {
	SendFrame(frame [4]byte) error
}

// Frame command bytes.
const (
	CmdDrive byte = 0x01
	CmdRegen byte = 0x02
)

// EncodeFrame builds the serial command frame: command kind, magnitude in
// 0.1 A units saturated at 255, and two reserved zero bytes.
func EncodeFrame(current float64, mode Mode) [4]byte {
	cmd := CmdDrive
	if mode == ModeRegen {
		cmd = CmdRegen
	}

	tenths := math.Abs(current) * 10
	if tenths > 255 {
		tenths = 255
	}
	return [4]byte{cmd, byte(tenths), 0, 0}
}

// PWM drives a DutySetter. Regen and negative currents map to duty 0 because
// a single PWM output has no braking direction.
type PWM struct {
	out        DutySetter
	maxCurrent float64
}

// NewPWM creates a PWM backend scaled so that maxCurrent is full duty.
func NewPWM(out DutySetter, maxCurrent float64) *PWM {
	return &PWM{out: out, maxCurrent: maxCurrent}
}

// Duty returns the duty fraction for a commanded current.
func (p *PWM) Duty(current float64, mode Mode) float64 {
	if mode == ModeRegen || current <= 0 || p.maxCurrent <= 0 {
		return 0
	}
	d := current / p.maxCurrent
	if d > 1 {
		return 1
	}
	return d
}

// Apply sets the duty for the commanded current.
func (p *PWM) Apply(current float64, mode Mode) error {
	duty := p.Duty(current, mode)
	if err := p.out.SetDuty(duty); err != nil {
		return fmt.Errorf("%w: set duty %.3f: %v", logic.ErrActuatorTransport, duty, err)
	}
	return nil
}

// Serial sends command frames over a FrameSender.
type Serial struct {
	link FrameSender
}

// NewSerial creates a Serial backend.
func NewSerial(link FrameSender) *Serial {
	return &Serial{link: link}
}

// Apply encodes and sends one frame.
func (s *Serial) Apply(current float64, mode Mode) error {
	frame := EncodeFrame(current, mode)
	if err := s.link.SendFrame(frame); err != nil {
		return fmt.Errorf("%w: send %s frame % x: %v", logic.ErrActuatorTransport, mode, frame, err)
	}
	return nil
}
