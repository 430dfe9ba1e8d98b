//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

const chipName = "gpiochip0"

// RealBank drives the controller's digital lines through the Linux GPIO character device.
type RealBank struct {
	chip  *gpiocdev.Chip
	lines map[Channel]*gpiocdev.Line
}

// NewRealBank requests every line in pins.
// Brake switches pull to ground when pulled, so they are requested active-low
// with pull-ups. The charger-detect line is requested as a plain pulled-up input.
func NewRealBank(pins Pins) (*RealBank, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealBank{chip: chip, lines: make(map[Channel]*gpiocdev.Line)}
	for ch, offset := range pins {
		var opts []gpiocdev.LineReqOption
		switch ch {
		case BrakeFront, BrakeRear:
			opts = []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.AsActiveLow, gpiocdev.WithPullUp}
		case Charging:
			opts = []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
		default:
			opts = []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
		}

		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", ch, offset, err)
		}
		b.lines[ch] = line
	}

	return b, nil
}

// ReadDigital returns the logical state of an input line.
func (b *RealBank) ReadDigital(ch Channel) (bool, error) {
	line, ok := b.lines[ch]
	if !ok {
		return false, fmt.Errorf("read %s: line not requested", ch)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s pin: %w", ch, err)
	}
	return v == 1, nil
}

// WriteDigital drives an output line.
func (b *RealBank) WriteDigital(ch Channel, on bool) error {
	line, ok := b.lines[ch]
	if !ok {
		return fmt.Errorf("write %s: line not requested", ch)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("write %s pin: %w", ch, err)
	}
	return nil
}

// Close releases GPIO resources.
// Outputs are driven low and every line is returned to input with pull-down
// (the Pi boot default) before closing.
func (b *RealBank) Close() error {
	var err error
	for ch, line := range b.lines {
		if ch.IsOutput() {
			err = multierr.Append(err, line.SetValue(0))
		}
		if rerr := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("reconfigure %s pin: %w", ch, rerr))
		}
		err = multierr.Append(err, line.Close())
	}
	if b.chip != nil {
		err = multierr.Append(err, b.chip.Close())
	}
	if err != nil {
		return fmt.Errorf("close errors: %w", err)
	}
	return nil
}

// RealWatcher delivers rising-edge events from the GPIO character device.
type RealWatcher struct {
	debounce time.Duration
	clock    *edgeClock

	mu    sync.Mutex
	lines []*gpiocdev.Line
}

// NewRealWatcher returns a watcher. A non-zero debounce enables kernel
// debouncing on every watched line; the cadence sensor is watched with zero
// and debounced by the control core instead.
func NewRealWatcher(debounce time.Duration) *RealWatcher {
	return &RealWatcher{debounce: debounce, clock: newEdgeClock(time.Now)}
}

// Watch requests the line at offset with rising-edge detection. The handler
// receives the kernel's event time translated onto the time.Now base.
func (w *RealWatcher) Watch(offset int, h EdgeHandler) error {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithPullUp,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			h(w.clock.At(evt.Timestamp))
		}),
	}
	if w.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(w.debounce))
	}

	line, err := gpiocdev.RequestLine(chipName, offset, opts...)
	if err != nil {
		return fmt.Errorf("watch pin %d: %w", offset, err)
	}

	w.mu.Lock()
	w.lines = append(w.lines, line)
	w.mu.Unlock()
	return nil
}

// Close releases every watched line.
func (w *RealWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	for _, line := range w.lines {
		err = multierr.Append(err, line.Close())
	}
	w.lines = nil
	return err
}
