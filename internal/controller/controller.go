// Package controller owns the e-bike's runtime state and binds the pure
// control core in internal/logic to its hardware collaborators.
//
// Tick and SafetySweep are called from a single loop goroutine. The operator
// surface (assist, lights, horn, fault reset) and the cadence edge handler
// may be called from any goroutine.
package controller

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/sweeney/ebike-controller/internal/actuator"
	"github.com/sweeney/ebike-controller/internal/adc"
	"github.com/sweeney/ebike-controller/internal/gpio"
	"github.com/sweeney/ebike-controller/internal/logic"
)

// Timer is a cancellable one-shot callback.
type Timer interface {
	Stop() bool
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	ADC      adc.Reader
	GPIO     gpio.Bank
	Actuator actuator.Actuator

	// Now defaults to time.Now.
	Now func() time.Time

	// AfterFunc defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
}

// Controller is the owned context for one bike.
type Controller struct {
	cfg       logic.Config
	adc       adc.Reader
	io        gpio.Bank
	act       actuator.Actuator
	now       func() time.Time
	afterFunc func(time.Duration, func()) Timer

	cadence   *logic.CadenceCounter
	sensors   *logic.SensorReader
	estimator *logic.Estimator
	demand    *logic.DemandCalculator
	safety    *logic.SafetyMonitor
	regen     *logic.RegenController

	// mu guards state and the control core.
	mu      sync.Mutex
	state   logic.SystemState
	stopped bool

	assist atomic.Int32

	// accMu guards the accessory outputs.
	accMu     sync.Mutex
	lightsOn  bool
	hornOn    bool
	hornGen   uint64
	hornTimer Timer

	overruns atomic.Uint64
}

// New validates cfg, builds the control core and commands zero drive
// current so the motor starts from a defined state.
func New(cfg logic.Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.ADC == nil || deps.GPIO == nil || deps.Actuator == nil {
		return nil, fmt.Errorf("controller needs adc, gpio and actuator collaborators")
	}

	c := &Controller{
		cfg:       cfg,
		adc:       deps.ADC,
		io:        deps.GPIO,
		act:       deps.Actuator,
		now:       deps.Now,
		afterFunc: deps.AfterFunc,
		cadence:   logic.NewCadenceCounter(),
		estimator: logic.NewEstimator(cfg),
		demand:    logic.NewDemandCalculator(cfg),
		safety:    logic.NewSafetyMonitor(cfg),
		regen:     logic.NewRegenController(cfg),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.afterFunc == nil {
		c.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	c.sensors = logic.NewSensorReader(cfg, c.cadence)

	level := cfg.ClampAssist(cfg.InitialAssist)
	c.assist.Store(int32(level))
	c.state.AssistLevel = level

	if err := c.act.Apply(0, actuator.ModeDrive); err != nil {
		return nil, fmt.Errorf("initial zero command: %w", err)
	}
	return c, nil
}

// OnCadenceEdge records a crank sensor pulse. It never blocks on the
// control tick.
func (c *Controller) OnCadenceEdge(ts time.Time) {
	c.cadence.OnEdge(ts)
}

// Tick runs one control pass started at now: read, convert, estimate,
// compute demand, check safety, step regen, actuate.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	raw, err := c.readInputs()
	if err != nil {
		c.tripLocked(logic.FaultSensor, err)
	} else {
		c.state.Apply(c.sensors.Read(raw, now))
	}

	c.state.AssistLevel = int(c.assist.Load())
	c.state.LightsOn, c.state.HornActive = c.accessories()

	c.estimator.Update(&c.state, now)
	c.state.CommandedCurrent = c.demand.Compute(c.state)

	if c.safety.Evaluate(&c.state) {
		log.Printf("fault: %s, emergency shutdown", c.state.Fault)
	}

	c.actuateLocked(c.regen.Update(c.state.BrakeActive, c.state.BatteryLevel, c.state.EmergencyShutdown))
	c.state.UpdatedAt = now

	if elapsed := c.now().Sub(now); elapsed > c.cfg.TickPeriod {
		if n := c.overruns.Add(1); n == 1 {
			log.Printf("overrun: control tick took %v (budget %v)", elapsed, c.cfg.TickPeriod)
		}
	}
}

// SafetySweep re-runs the safety check on the latest state outside the
// control tick. A newly latched fault is acted on immediately. Before the
// first tick there is no reading to check and the sweep does nothing.
func (c *Controller) SafetySweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.state.UpdatedAt.IsZero() {
		return
	}

	wasLatched := c.state.EmergencyShutdown
	if c.safety.Evaluate(&c.state) {
		log.Printf("fault: %s, emergency shutdown (safety sweep)", c.state.Fault)
	}
	if c.state.EmergencyShutdown && !wasLatched {
		c.actuateLocked(c.regen.Release())
	}
}

// actuateLocked sends the regen transition frame, if any, then the forward
// drive command. Drive frames are withheld while regen is engaged so they
// do not cancel the braking current.
func (c *Controller) actuateLocked(cmd logic.RegenCommand) {
	if cmd.Send {
		if cmd.Current > 0 {
			log.Printf("regen: active %.1fA", cmd.Current)
		} else {
			log.Printf("regen: released")
		}
		if !c.applyLocked(cmd.Current, actuator.ModeRegen) {
			return
		}
	}
	c.state.RegenActive = c.regen.Active()

	if c.state.RegenActive {
		return
	}
	c.applyLocked(c.state.CommandedCurrent, actuator.ModeDrive)
}

// applyLocked writes one actuator command. A transport failure latches
// FaultActuator and zeroes the command.
func (c *Controller) applyLocked(current float64, mode actuator.Mode) bool {
	if err := c.act.Apply(current, mode); err != nil {
		c.tripLocked(logic.FaultActuator, err)
		return false
	}
	return true
}

// tripLocked latches f, forces zero current and disengages regen. The zero
// write is best effort because the transport may be the thing that failed.
func (c *Controller) tripLocked(f logic.Fault, cause error) {
	if c.safety.Trip(f) {
		log.Printf("fault: %s, emergency shutdown: %v", f, cause)
	}
	c.regen.Release()
	c.state.RegenActive = false
	c.state.CommandedCurrent = 0
	c.state.EmergencyShutdown = true
	c.state.Fault = c.safety.Fault()
	c.act.Apply(0, actuator.ModeDrive)
}

func (c *Controller) readInputs() (logic.RawInputs, error) {
	var raw logic.RawInputs
	var err error

	analog := func(ch adc.Channel) int {
		v, rerr := c.adc.ReadAnalog(ch)
		err = multierr.Append(err, rerr)
		return v
	}
	digital := func(ch gpio.Channel) bool {
		v, rerr := c.io.ReadDigital(ch)
		err = multierr.Append(err, rerr)
		return v
	}

	raw.Throttle = analog(adc.Throttle)
	raw.Torque = analog(adc.Torque)
	raw.Battery = analog(adc.Battery)
	raw.MotorTemp = analog(adc.MotorTemp)
	raw.ControllerTemp = analog(adc.ControllerTemp)
	raw.BrakeFront = digital(gpio.BrakeFront)
	raw.BrakeRear = digital(gpio.BrakeRear)
	raw.ChargingLevel = digital(gpio.Charging)

	if err != nil {
		return raw, fmt.Errorf("%w: %v", logic.ErrSensorRead, err)
	}
	return raw, nil
}

// Shutdown forces zero current, releases regen and silences the horn. Later
// ticks are ignored.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if cmd := c.regen.Release(); cmd.Send {
		err = multierr.Append(err, c.act.Apply(0, actuator.ModeRegen))
	}
	err = multierr.Append(err, c.act.Apply(0, actuator.ModeDrive))
	c.state.RegenActive = false
	c.state.CommandedCurrent = 0
	c.stopped = true

	c.accMu.Lock()
	c.hornGen++
	if c.hornTimer != nil {
		c.hornTimer.Stop()
		c.hornTimer = nil
	}
	if c.hornOn {
		err = multierr.Append(err, c.io.WriteDigital(gpio.Horn, false))
		c.hornOn = false
	}
	c.accMu.Unlock()

	return err
}

// ResetFault clears the emergency shutdown latch. If a trigger is still
// present the next tick latches again.
func (c *Controller) ResetFault() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.safety.Latched() {
		return
	}
	log.Printf("fault: %s reset", c.safety.Fault())
	c.safety.Reset()
	c.state.EmergencyShutdown = false
	c.state.Fault = logic.FaultNone
}

// State returns a consistent copy of the system state.
func (c *Controller) State() logic.SystemState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Overruns returns how many control ticks exceeded the tick period.
func (c *Controller) Overruns() uint64 {
	return c.overruns.Load()
}

// Config returns the controller configuration.
func (c *Controller) Config() logic.Config {
	return c.cfg
}
