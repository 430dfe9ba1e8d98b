package display

import (
	"log"
	"sync"

	"go.uber.org/multierr"
)

// LogRenderer writes screens to the process log. Unchanged screens are
// skipped so the 100 ms refresh does not flood the journal.
type LogRenderer struct {
	mu   sync.Mutex
	last Screen
	seen bool
}

// NewLogRenderer creates a LogRenderer.
func NewLogRenderer() *LogRenderer {
	return &LogRenderer{}
}

// Render logs s if it differs from the previous screen.
func (r *LogRenderer) Render(s Screen) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen && r.last.Equal(s) {
		return nil
	}
	r.last = s
	r.seen = true
	log.Printf("display: [%s] %s", s.Kind, s.Text())
	return nil
}

// Multi renders to every renderer in order. A failing renderer does not
// stop the others; their errors are combined.
type Multi []Renderer

func (m Multi) Render(s Screen) error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.Render(s))
	}
	return err
}

// FakeRenderer records rendered screens for test assertions.
// It is safe for concurrent use.
type FakeRenderer struct {
	mu sync.Mutex

	// Screens contains every rendered screen in order.
	Screens []Screen

	// Error, if set, will be returned by Render after recording.
	Error error
}

// NewFakeRenderer creates a FakeRenderer.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{}
}

// Render records the screen.
func (f *FakeRenderer) Render(s Screen) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Screens = append(f.Screens, s)
	return f.Error
}

// Last returns the most recent screen, or false if none.
func (f *FakeRenderer) Last() (Screen, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Screens) == 0 {
		return Screen{}, false
	}
	return f.Screens[len(f.Screens)-1], true
}

// Count returns how many screens of the given kind were rendered.
func (f *FakeRenderer) Count(k Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.Screens {
		if s.Kind == k {
			n++
		}
	}
	return n
}
