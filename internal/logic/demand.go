package logic

import (
	"time"

	"go.einride.tech/pid"
)

// pidStep is the sampling interval handed to the speed loop. The loop runs
// once per tick and accumulates raw error per step, so a unit interval keeps
// the integral and derivative in per-tick units.
const pidStep = time.Second

// DemandCalculator blends throttle and pedal assist into a forward current
// demand and regulates it with the speed loop.
type DemandCalculator struct {
	cfg Config
	pid pid.Controller
}

// NewDemandCalculator returns a calculator with a zeroed speed loop.
func NewDemandCalculator(cfg Config) *DemandCalculator {
	return &DemandCalculator{
		cfg: cfg,
		pid: pid.Controller{
			Config: pid.ControllerConfig{
				ProportionalGain: cfg.Kp,
				IntegralGain:     cfg.Ki,
				DerivativeGain:   cfg.Kd,
			},
		},
	}
}

// Compute returns the forward current demand for the state, in [0, MaxCurrent].
// The speed loop advances on every call, including ticks where the brake or a
// critical battery forces the demand to zero.
func (d *DemandCalculator) Compute(s SystemState) float64 {
	demand := d.blend(s)
	demand *= d.multiplier(s.AssistLevel)

	targetSpeed := min(s.Throttle/100*d.cfg.MaxSpeed, d.cfg.MaxSpeed)
	demand *= 1 + d.regulate(targetSpeed, s.Speed)
	demand = clamp(demand, 0, d.cfg.MaxCurrent)

	demand *= fieldWeakening(s.Speed, d.cfg.MaxSpeed)

	if s.BrakeActive || s.BatteryLevel < CriticalBattery {
		return 0
	}
	return demand
}

// blend picks the larger of the throttle current and the pedal-assist current.
func (d *DemandCalculator) blend(s SystemState) float64 {
	throttleCurrent := s.Throttle / 100 * d.cfg.MaxCurrent
	if s.Cadence <= PedalingThreshold {
		return throttleCurrent
	}

	cadenceFactor := min(s.Cadence/CadenceNormal, CadenceFactorLimit)
	var assistCurrent float64
	if s.Torque > TorqueThreshold {
		assistCurrent = s.Torque * TorqueGain
	} else {
		assistCurrent = throttleCurrent * cadenceFactor * CadenceAssistFactor
	}
	return max(throttleCurrent, assistCurrent)
}

func (d *DemandCalculator) multiplier(level int) float64 {
	return d.cfg.AssistMultipliers[d.cfg.ClampAssist(level)-1]
}

// regulate advances the speed loop one step and returns its output.
func (d *DemandCalculator) regulate(target, actual float64) float64 {
	d.pid.Update(pid.ControllerInput{
		ReferenceSignal:  target,
		ActualSignal:     actual,
		SamplingInterval: pidStep,
	})

	limit := d.cfg.IntegralLimit
	if limit <= 0 {
		return d.pid.State.ControlSignal
	}

	st := &d.pid.State
	st.ControlErrorIntegral = clamp(st.ControlErrorIntegral, -limit, limit)
	st.ControlSignal = d.cfg.Kp*st.ControlError +
		d.cfg.Ki*st.ControlErrorIntegral +
		d.cfg.Kd*st.ControlErrorDerivative
	return st.ControlSignal
}

// Integral returns the accumulated speed error.
func (d *DemandCalculator) Integral() float64 {
	return d.pid.State.ControlErrorIntegral
}

// Reset clears the speed loop state.
func (d *DemandCalculator) Reset() {
	d.pid.Reset()
}

// fieldWeakening returns the taper applied above FieldWeakeningStart of the
// rated speed: 1 below it, falling linearly to 0 at maxSpeed and beyond.
func fieldWeakening(speed, maxSpeed float64) float64 {
	start := FieldWeakeningStart * maxSpeed
	if speed <= start {
		return 1
	}
	ratio := (speed - start) / ((1 - FieldWeakeningStart) * maxSpeed)
	return 1 - clamp(ratio, 0, 1)
}
