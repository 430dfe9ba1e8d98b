package actuator

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// PWM clock and cycle length. Output frequency is the clock divided by the
// cycle length: 19.2 MHz / 960 = 20 kHz, above audible range.
const (
	PWMClock = 19_200_000
	PWMCycle = 960
)

// DefaultPWMPin is the BCM pin carrying the motor PWM signal.
const DefaultPWMPin = 18

// RPIODuty drives a hardware PWM pin via /dev/gpiomem.
type RPIODuty struct {
	pin rpio.Pin
}

// OpenRPIODuty maps the GPIO registers and configures pin for PWM at duty 0.
func OpenRPIODuty(bcm int) (*RPIODuty, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}

	pin := rpio.Pin(bcm)
	pin.Mode(rpio.Pwm)
	pin.Freq(PWMClock)
	pin.DutyCycle(0, PWMCycle)

	return &RPIODuty{pin: pin}, nil
}

// SetDuty writes the duty fraction, clamped to [0, 1].
func (r *RPIODuty) SetDuty(fraction float64) error {
	r.pin.DutyCycle(dutyLength(fraction), PWMCycle)
	return nil
}

// Close drops the duty to zero and unmaps the registers.
func (r *RPIODuty) Close() error {
	r.pin.DutyCycle(0, PWMCycle)
	return rpio.Close()
}

func dutyLength(fraction float64) uint32 {
	if fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return PWMCycle
	}
	return uint32(fraction * PWMCycle)
}
