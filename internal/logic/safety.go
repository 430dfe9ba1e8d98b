package logic

// SafetyMonitor checks thermal, current and battery limits and owns the
// emergency shutdown latch. The only transition is Normal -> EmergencyShutdown;
// leaving it takes an explicit Reset unless Config.LatchShutdown is false.
type SafetyMonitor struct {
	cfg     Config
	latched bool
	fault   Fault
}

// NewSafetyMonitor returns a monitor in the Normal state.
func NewSafetyMonitor(cfg Config) *SafetyMonitor {
	return &SafetyMonitor{cfg: cfg}
}

// Check returns the first limit the state violates, in priority order, or
// FaultNone.
func (m *SafetyMonitor) Check(s SystemState) Fault {
	switch {
	case s.MotorTemp > MotorTempLimit:
		return FaultMotorOverheat
	case s.ControllerTemp > ControllerTempLimit:
		return FaultControllerHot
	case s.CommandedCurrent > m.cfg.MaxCurrent*OverCurrentFactor:
		return FaultOverCurrent
	case s.BatteryLevel < CriticalBattery:
		return FaultLowBattery
	}
	return FaultNone
}

// Evaluate checks s, latches on a violation, and forces the commanded current
// to zero while latched. It returns true when this call latched a new fault.
func (m *SafetyMonitor) Evaluate(s *SystemState) bool {
	fault := m.Check(*s)

	tripped := false
	switch {
	case fault != FaultNone:
		tripped = m.Trip(fault)
	case m.latched && !m.cfg.LatchShutdown && m.fault < FaultActuator:
		m.Reset()
	}

	m.apply(s)
	return tripped
}

// Trip latches an externally detected fault such as a transport failure.
// The first fault is kept while latched. Returns true if this call latched.
func (m *SafetyMonitor) Trip(f Fault) bool {
	if m.latched || f == FaultNone {
		return false
	}
	m.latched = true
	m.fault = f
	return true
}

// Reset clears the latch. It is the external reset path.
func (m *SafetyMonitor) Reset() {
	m.latched = false
	m.fault = FaultNone
}

// Latched reports whether the monitor is in EmergencyShutdown.
func (m *SafetyMonitor) Latched() bool {
	return m.latched
}

// Fault returns the latched fault, or FaultNone.
func (m *SafetyMonitor) Fault() Fault {
	return m.fault
}

func (m *SafetyMonitor) apply(s *SystemState) {
	s.EmergencyShutdown = m.latched
	s.Fault = m.fault
	if m.latched {
		s.CommandedCurrent = 0
	}
}
