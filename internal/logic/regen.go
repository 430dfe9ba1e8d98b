package logic

// RegenState is the regenerative braking state.
type RegenState string

const (
	RegenIdle   RegenState = "IDLE"
	RegenActive RegenState = "REGEN_ACTIVE"
)

// RegenCommand is a regen frame the actuator must send this tick.
type RegenCommand struct {
	Send    bool
	Current float64 // A, 0 releases regen
}

// RegenController toggles regenerative braking from the brake input and
// battery headroom.
type RegenController struct {
	cfg   Config
	state RegenState
}

// NewRegenController returns a controller in RegenIdle.
func NewRegenController(cfg Config) *RegenController {
	return &RegenController{cfg: cfg, state: RegenIdle}
}

// Update advances the state machine. A command is returned only on a
// transition: the capped regen current on activation, zero on release.
// inhibit (emergency shutdown) blocks activation and releases active regen.
func (r *RegenController) Update(brakeActive bool, batteryLevel int, inhibit bool) RegenCommand {
	switch r.state {
	case RegenIdle:
		if brakeActive && batteryLevel < RegenBatteryMax && !inhibit {
			r.state = RegenActive
			return RegenCommand{Send: true, Current: r.cfg.RegenCurrent()}
		}
	case RegenActive:
		if !brakeActive || inhibit {
			r.state = RegenIdle
			return RegenCommand{Send: true, Current: 0}
		}
	}
	return RegenCommand{}
}

// Release forces the controller back to RegenIdle. It returns the zero frame
// to send if regen was active.
func (r *RegenController) Release() RegenCommand {
	if r.state != RegenActive {
		return RegenCommand{}
	}
	r.state = RegenIdle
	return RegenCommand{Send: true, Current: 0}
}

// State returns the current state.
func (r *RegenController) State() RegenState {
	return r.state
}

// Active reports whether regen is engaged.
func (r *RegenController) Active() bool {
	return r.state == RegenActive
}
