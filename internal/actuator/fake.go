package actuator

import "sync"

// Command is one recorded Apply call.
type Command struct {
	Current float64
	Mode    Mode
}

// FakeActuator records commands. It is safe for concurrent use.
type FakeActuator struct {
	mu sync.Mutex

	// Commands holds every Apply call in order.
	Commands []Command

	// Error, if set, will be returned by Apply after recording the call.
	Error error
}

// NewFakeActuator creates an empty FakeActuator.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// Apply records the command.
func (f *FakeActuator) Apply(current float64, mode Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, Command{Current: current, Mode: mode})
	return f.Error
}

// Last returns the most recent command, or false if none.
func (f *FakeActuator) Last() (Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Commands) == 0 {
		return Command{}, false
	}
	return f.Commands[len(f.Commands)-1], true
}

// Count returns how many commands had the given mode.
func (f *FakeActuator) Count(mode Mode) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Commands {
		if c.Mode == mode {
			n++
		}
	}
	return n
}

// Fail sets the error returned by later calls.
func (f *FakeActuator) Fail(err error) {
	f.mu.Lock()
	f.Error = err
	f.mu.Unlock()
}

// FakeDuty records duty writes.
type FakeDuty struct {
	Duties []float64
	Error  error
}

func (f *FakeDuty) SetDuty(fraction float64) error {
	if f.Error != nil {
		return f.Error
	}
	f.Duties = append(f.Duties, fraction)
	return nil
}

// FakeLink records frames.
type FakeLink struct {
	Frames [][4]byte
	Error  error
}

func (f *FakeLink) SendFrame(frame [4]byte) error {
	if f.Error != nil {
		return f.Error
	}
	f.Frames = append(f.Frames, frame)
	return nil
}
