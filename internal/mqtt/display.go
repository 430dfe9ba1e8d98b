package mqtt

import (
	"bytes"
	"fmt"
	"log"
	"sync"

	"github.com/sweeney/ebike-controller/internal/display"
)

// BufferCapacity is how many urgent screens are held while disconnected.
const BufferCapacity = 16

// Display is a display.Renderer that mirrors screens to the head unit.
//
// Screens are retained so a head unit that (re)subscribes gets the current
// frame. Dashboards are QoS 0 and dropped while disconnected since the next
// refresh supersedes them. Emergency and shutdown screens are QoS 1 and are
// buffered while disconnected, then replayed in order before the next screen.
// Repeats of the last delivered or buffered screen are not sent again.
type Display struct {
	mu         sync.Mutex
	client     Client
	pending    *screenQueue
	lastSent   []byte
	lastQueued []byte
}

// NewDisplay creates a Display over client.
func NewDisplay(client Client) *Display {
	return &Display{
		client:  client,
		pending: newScreenQueue(BufferCapacity),
	}
}

func urgent(k display.Kind) bool {
	return k == display.KindEmergency || k == display.KindShutdown
}

// Render publishes s unless it repeats the last delivered screen.
func (d *Display) Render(s display.Screen) error {
	payload, err := FormatScreen(s)
	if err != nil {
		return fmt.Errorf("format screen: %w", err)
	}

	msg := queuedScreen{kind: s.Kind, payload: payload}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.client.IsConnected() {
		d.lastSent = nil
		d.queueLocked(msg)
		return nil
	}

	if err := d.flushLocked(); err != nil {
		return err
	}

	if bytes.Equal(payload, d.lastSent) {
		return nil
	}

	if err := d.publish(msg); err != nil {
		d.lastSent = nil
		d.queueLocked(msg)
		return fmt.Errorf("publish %s screen: %w", s.Kind, err)
	}

	d.lastSent = payload
	return nil
}

// publish sends a screen retained; urgent screens at QoS 1.
func (d *Display) publish(s queuedScreen) error {
	var qos byte
	if urgent(s.kind) {
		qos = 1
	}
	return d.client.Publish(TopicDisplay, qos, true, s.payload)
}

// queueLocked holds an urgent screen for replay. Dashboards are dropped.
func (d *Display) queueLocked(msg queuedScreen) {
	if !urgent(msg.kind) {
		d.lastQueued = nil
		return
	}
	if bytes.Equal(msg.payload, d.lastQueued) {
		return
	}
	d.pending.add(msg)
	d.lastQueued = msg.payload
}

func (d *Display) flushLocked() error {
	msgs := d.pending.take()
	for i, m := range msgs {
		if err := d.publish(m); err != nil {
			for _, rest := range msgs[i:] {
				d.pending.add(rest)
			}
			return fmt.Errorf("replay buffered screen: %w", err)
		}
	}
	if len(msgs) > 0 {
		d.lastSent = msgs[len(msgs)-1].payload
		log.Printf("mqtt: replayed %d buffered screens", len(msgs))
	}
	d.lastQueued = nil
	return nil
}

// Pending returns the number of buffered screens awaiting replay.
func (d *Display) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.len()
}
