package logic

import (
	"sync"
	"time"
)

// CadenceCounter counts debounced crank-sensor edges and turns them into RPM.
//
// OnEdge is called from the edge handler goroutine; Sample is called once per
// control tick. The pulse count and last-edge time are exchanged as one unit
// under mu. The remaining fields belong to the sampling side only.
//
// After a timeout the window is empty. The first edge that follows only
// anchors a new window; RPM is reported from the second edge on.
type CadenceCounter struct {
	mu        sync.Mutex
	pulses    int
	firstEdge time.Time
	lastEdge  time.Time
	seen      bool

	windowStart time.Time
	carry       int
	rpm         float64
}

// NewCadenceCounter returns an idle counter.
func NewCadenceCounter() *CadenceCounter {
	return &CadenceCounter{}
}

// OnEdge records a sensor edge at ts. Edges closer than CadenceDebounce to the
// last accepted edge are ignored and do not move the last-edge time.
// Returns whether the edge was counted.
func (c *CadenceCounter) OnEdge(ts time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen && ts.Sub(c.lastEdge) < CadenceDebounce {
		return false
	}
	if c.pulses == 0 {
		c.firstEdge = ts
	}
	c.pulses++
	c.lastEdge = ts
	c.seen = true
	return true
}

// take atomically reads and resets the pulse count. firstEdge is the first
// edge accepted since the previous take.
func (c *CadenceCounter) take() (pulses int, firstEdge, lastEdge time.Time, seen bool) {
	c.mu.Lock()
	pulses, firstEdge, lastEdge, seen = c.pulses, c.firstEdge, c.lastEdge, c.seen
	c.pulses = 0
	c.mu.Unlock()
	return pulses, firstEdge, lastEdge, seen
}

// Sample returns the crank RPM over the window since the previous computing
// sample, and whether any edge was accepted within CadenceTimeout of now.
// Ticks with no new pulses keep the previous RPM.
func (c *CadenceCounter) Sample(now time.Time) (float64, bool) {
	pulses, firstEdge, lastEdge, seen := c.take()

	if !seen || now.Sub(lastEdge) > CadenceTimeout {
		c.rpm = 0
		c.carry = 0
		c.windowStart = time.Time{}
		return 0, false
	}

	if c.windowStart.IsZero() {
		if pulses == 0 {
			return 0, true
		}
		// Starting from rest: the first edge opens the window.
		c.windowStart = firstEdge
		pulses--
	}

	pulses += c.carry
	c.carry = 0
	if pulses == 0 {
		return c.rpm, true
	}

	elapsed := now.Sub(c.windowStart)
	if elapsed <= 0 {
		// Zero-width window: hold the last value and keep the pulses.
		c.carry = pulses
		return c.rpm, true
	}

	c.rpm = (float64(pulses) / PulsesPerRevolution) * (60 / elapsed.Seconds())
	c.windowStart = now
	return c.rpm, true
}
