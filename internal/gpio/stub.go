//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealBank is not available on non-Linux platforms.
type RealBank struct{}

// NewRealBank returns an error on non-Linux platforms.
func NewRealBank(pins Pins) (*RealBank, error) {
	return nil, errUnsupported
}

// ReadDigital is not implemented on non-Linux platforms.
func (b *RealBank) ReadDigital(ch Channel) (bool, error) {
	return false, errUnsupported
}

// WriteDigital is not implemented on non-Linux platforms.
func (b *RealBank) WriteDigital(ch Channel, on bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *RealBank) Close() error {
	return nil
}

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns a watcher whose Watch always fails.
func NewRealWatcher(debounce time.Duration) *RealWatcher {
	return &RealWatcher{}
}

// Watch is not implemented on non-Linux platforms.
func (w *RealWatcher) Watch(offset int, h EdgeHandler) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *RealWatcher) Close() error {
	return nil
}
