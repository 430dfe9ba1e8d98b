package adc

import (
	"fmt"
	"sync"
)

// FakeReader is a test double that returns settable analog codes.
// It is safe for concurrent use.
type FakeReader struct {
	mu sync.Mutex

	// Values holds the code returned per channel.
	Values map[Channel]int

	// Errors, if set for a channel, will be returned by ReadAnalog.
	Errors map[Channel]error

	// Reads counts ReadAnalog calls per channel.
	Reads map[Channel]int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeReader creates a FakeReader with every channel at 0.
func NewFakeReader() *FakeReader {
	return &FakeReader{
		Values: make(map[Channel]int),
		Errors: make(map[Channel]error),
		Reads:  make(map[Channel]int),
	}
}

// Set changes a channel's code.
func (f *FakeReader) Set(ch Channel, code int) {
	f.mu.Lock()
	f.Values[ch] = code
	f.mu.Unlock()
}

// SetVolts sets a channel from an input voltage.
func (f *FakeReader) SetVolts(ch Channel, volts float64) {
	f.Set(ch, codeFor(volts))
}

// Fail makes every later read of ch return err. A nil err clears it.
func (f *FakeReader) Fail(ch Channel, err error) {
	f.mu.Lock()
	if err == nil {
		delete(f.Errors, ch)
	} else {
		f.Errors[ch] = err
	}
	f.mu.Unlock()
}

// ReadAnalog returns the configured code.
func (f *FakeReader) ReadAnalog(ch Channel) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads[ch]++
	if err := f.Errors[ch]; err != nil {
		return 0, fmt.Errorf("read %s: %w", ch, err)
	}
	return f.Values[ch], nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
