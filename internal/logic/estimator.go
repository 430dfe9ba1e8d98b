package logic

import "time"

// Estimator derives speed, distance and electrical power each tick.
type Estimator struct {
	cfg      Config
	lastTick time.Time
}

// NewEstimator returns an estimator with no tick history.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

// Update recomputes speed and power and integrates distance over the time
// actually elapsed since the previous Update. The first call adds no distance.
// Power uses the current commanded on the previous tick.
func (e *Estimator) Update(s *SystemState, now time.Time) {
	s.Speed = s.Cadence * e.cfg.WheelCircumference * 60 / 1000
	if s.Speed < 0 {
		s.Speed = 0
	}

	if !e.lastTick.IsZero() {
		if dt := now.Sub(e.lastTick); dt > 0 {
			s.Distance += s.Speed * dt.Hours()
		}
	}
	e.lastTick = now

	s.Power = s.CommandedCurrent * s.Voltage
}
