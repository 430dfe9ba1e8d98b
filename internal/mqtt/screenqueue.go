package mqtt

import (
	"log"

	"github.com/sweeney/ebike-controller/internal/display"
)

// queuedScreen is an urgent screen waiting for the broker to come back.
type queuedScreen struct {
	kind    display.Kind
	payload []byte
}

// screenQueue holds urgent screens oldest first, up to limit. When full the
// oldest screen is dropped. Display holds its mutex around every call.
type screenQueue struct {
	items   []queuedScreen
	limit   int
	dropped int
}

func newScreenQueue(limit int) *screenQueue {
	return &screenQueue{items: make([]queuedScreen, 0, limit), limit: limit}
}

func (q *screenQueue) add(s queuedScreen) {
	if len(q.items) == q.limit {
		if q.dropped == 0 {
			log.Printf("mqtt: screen buffer full (%d), dropping oldest", q.limit)
		}
		q.dropped++
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
	}
	q.items = append(q.items, s)
}

// take empties the queue and returns what it held.
func (q *screenQueue) take() []queuedScreen {
	if len(q.items) == 0 {
		return nil
	}
	out := make([]queuedScreen, len(q.items))
	copy(out, q.items)
	q.items = q.items[:0]
	if q.dropped > 0 {
		log.Printf("mqtt: %d screens were dropped while disconnected", q.dropped)
		q.dropped = 0
	}
	return out
}

func (q *screenQueue) len() int {
	return len(q.items)
}
