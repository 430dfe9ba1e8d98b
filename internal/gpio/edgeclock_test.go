package gpio

import (
	"testing"
	"time"
)

func TestEdgeClockUsesKernelIntervals(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	delivered := t0
	c := newEdgeClock(func() time.Time { return delivered })

	// Edges 200ms apart on the kernel clock, delivered with varying latency.
	tests := []struct {
		kernel  time.Duration
		latency time.Duration
		want    time.Duration
	}{
		{5 * time.Second, 3 * time.Millisecond, 0},
		{5*time.Second + 200*time.Millisecond, 9 * time.Millisecond, 200 * time.Millisecond},
		{5*time.Second + 400*time.Millisecond, 1 * time.Millisecond, 398 * time.Millisecond},
		{5*time.Second + 600*time.Millisecond, 7 * time.Millisecond, 598 * time.Millisecond},
	}
	first := t0.Add(-3 * time.Millisecond)
	for i, tt := range tests {
		delivered = first.Add(tt.kernel - 5*time.Second).Add(tt.latency)
		got := c.At(tt.kernel)
		if got.After(delivered) {
			t.Errorf("edge %d: translated time %v is after delivery %v", i, got, delivered)
		}
		if d := got.Sub(t0); d != tt.want {
			t.Errorf("edge %d: expected %v after first edge, got %v", i, tt.want, d)
		}
	}
}
