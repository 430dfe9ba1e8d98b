package gpio

import (
	"sync"
	"time"
)

// edgeClock maps kernel event timestamps onto the time.Now base so edge
// intervals come from the kernel and not from handler scheduling.
//
// The kernel clock has an unknown epoch. The offset is the smallest
// now-minus-timestamp seen so far, so a translated time is never later than
// the delivery time and converges on the lowest delivery latency.
type edgeClock struct {
	mu   sync.Mutex
	now  func() time.Time
	base time.Time
}

func newEdgeClock(now func() time.Time) *edgeClock {
	return &edgeClock{now: now}
}

// At returns the time of an event stamped ts by the kernel.
func (c *edgeClock) At(ts time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if base := c.now().Add(-ts); c.base.IsZero() || base.Before(c.base) {
		c.base = base
	}
	return c.base.Add(ts)
}
