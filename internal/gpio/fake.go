package gpio

import (
	"fmt"
	"sync"
	"time"
)

// Write records one WriteDigital call on a FakeBank.
type Write struct {
	Channel Channel
	On      bool
}

// FakeBank is a test double with settable input levels and recorded writes.
// It is safe for concurrent use.
type FakeBank struct {
	mu sync.Mutex

	// Inputs holds the value ReadDigital returns per channel.
	Inputs map[Channel]bool

	// Outputs holds the last value written per channel.
	Outputs map[Channel]bool

	// Writes lists every WriteDigital call in order.
	Writes []Write

	// ReadError, if set, will be returned by ReadDigital.
	ReadError error

	// WriteError, if set, will be returned by WriteDigital.
	WriteError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeBank creates a FakeBank with every brake released and the charger
// line idle high.
func NewFakeBank() *FakeBank {
	return &FakeBank{
		Inputs:  map[Channel]bool{Charging: true},
		Outputs: make(map[Channel]bool),
	}
}

// Set changes an input level.
func (f *FakeBank) Set(ch Channel, v bool) {
	f.mu.Lock()
	f.Inputs[ch] = v
	f.mu.Unlock()
}

// Output returns the last value written to ch.
func (f *FakeBank) Output(ch Channel) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Outputs[ch]
}

// ReadDigital returns the configured input level.
func (f *FakeBank) ReadDigital(ch Channel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	if ch.IsOutput() {
		return false, fmt.Errorf("read %s: not an input", ch)
	}
	return f.Inputs[ch], nil
}

// WriteDigital records the write.
func (f *FakeBank) WriteDigital(ch Channel, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	if !ch.IsOutput() {
		return fmt.Errorf("write %s: not an output", ch)
	}
	f.Outputs[ch] = on
	f.Writes = append(f.Writes, Write{Channel: ch, On: on})
	return nil
}

// Close marks the bank as closed.
func (f *FakeBank) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeWatcher records handlers so tests can fire edges by hand.
type FakeWatcher struct {
	mu       sync.Mutex
	handlers map[int]EdgeHandler

	// WatchError, if set, will be returned by Watch.
	WatchError error

	Closed bool
}

// NewFakeWatcher creates an empty FakeWatcher.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{handlers: make(map[int]EdgeHandler)}
}

// Watch stores the handler for offset.
func (f *FakeWatcher) Watch(offset int, h EdgeHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WatchError != nil {
		return f.WatchError
	}
	f.handlers[offset] = h
	return nil
}

// Fire delivers an edge at ts to the handler on offset.
// Returns false if nothing watches the offset.
func (f *FakeWatcher) Fire(offset int, ts time.Time) bool {
	f.mu.Lock()
	h, ok := f.handlers[offset]
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(ts)
	return true
}

// Close drops every handler.
func (f *FakeWatcher) Close() error {
	f.mu.Lock()
	f.handlers = make(map[int]EdgeHandler)
	f.Closed = true
	f.mu.Unlock()
	return nil
}
