package controller

import (
	"log"
	"time"

	"go.uber.org/multierr"

	"github.com/sweeney/ebike-controller/internal/gpio"
)

// SetAssistLevel clamps level to the assist table and applies it from the
// next tick. It returns the level in effect.
func (c *Controller) SetAssistLevel(level int) int {
	level = c.cfg.ClampAssist(level)
	if old := c.assist.Swap(int32(level)); int(old) != level {
		log.Printf("assist: level %d", level)
	}
	return level
}

// StepAssist moves the assist level by delta, clamped.
func (c *Controller) StepAssist(delta int) int {
	for {
		old := c.assist.Load()
		level := c.cfg.ClampAssist(int(old) + delta)
		if c.assist.CompareAndSwap(old, int32(level)) {
			if int(old) != level {
				log.Printf("assist: level %d", level)
			}
			return level
		}
	}
}

// AssistLevel returns the level the next tick will use.
func (c *Controller) AssistLevel() int {
	return int(c.assist.Load())
}

// ToggleLights flips the headlight and taillight together and returns the
// new state.
func (c *Controller) ToggleLights() (bool, error) {
	c.accMu.Lock()
	defer c.accMu.Unlock()

	on := !c.lightsOn
	err := multierr.Append(
		c.io.WriteDigital(gpio.Headlight, on),
		c.io.WriteDigital(gpio.Taillight, on),
	)
	if err != nil {
		log.Printf("failed to switch lights: %v", err)
		return c.lightsOn, err
	}
	c.lightsOn = on
	return on, nil
}

// SoundHorn turns the horn on for d, or the configured duration when d is
// not positive. Sounding it again while on restarts the deadline.
func (c *Controller) SoundHorn(d time.Duration) error {
	if d <= 0 {
		d = c.cfg.HornDuration
	}

	c.accMu.Lock()
	defer c.accMu.Unlock()

	if err := c.io.WriteDigital(gpio.Horn, true); err != nil {
		log.Printf("failed to sound horn: %v", err)
		return err
	}
	c.hornOn = true

	c.hornGen++
	gen := c.hornGen
	if c.hornTimer != nil {
		c.hornTimer.Stop()
	}
	c.hornTimer = c.afterFunc(d, func() { c.hornOff(gen) })
	return nil
}

// hornOff silences the horn unless a later SoundHorn superseded gen.
func (c *Controller) hornOff(gen uint64) {
	c.accMu.Lock()
	defer c.accMu.Unlock()

	if gen != c.hornGen {
		return
	}
	if err := c.io.WriteDigital(gpio.Horn, false); err != nil {
		log.Printf("failed to silence horn: %v", err)
		return
	}
	c.hornOn = false
	c.hornTimer = nil
}

func (c *Controller) accessories() (lights, horn bool) {
	c.accMu.Lock()
	defer c.accMu.Unlock()
	return c.lightsOn, c.hornOn
}
