package main

import (
	"log"
	"sync"
	"time"

	"github.com/sweeney/ebike-controller/internal/mqtt"
	"github.com/sweeney/ebike-controller/internal/status"
)

const (
	eventQueueSize = 16
	eventDrainWait = 5 * time.Second
)

// eventQueue hands system events to a publisher goroutine so the control
// loop never waits on the broker. When the queue is full the oldest event
// is dropped. A nil queue discards everything.
type eventQueue struct {
	ch        chan mqtt.SystemEvent
	done      chan struct{}
	closeOnce sync.Once
}

func newEventQueue(publisher *mqtt.Publisher, size int) *eventQueue {
	q := &eventQueue{
		ch:   make(chan mqtt.SystemEvent, size),
		done: make(chan struct{}),
	}
	go q.run(publisher)
	return q
}

func (q *eventQueue) run(publisher *mqtt.Publisher) {
	defer close(q.done)
	for ev := range q.ch {
		if err := publisher.PublishSystem(ev); err != nil {
			log.Printf("failed to publish %s event: %v", ev.Event, err)
			continue
		}
		log.Printf("published %s event", ev.Event)
	}
}

// push enqueues ev without blocking. It must only be called from one
// goroutine.
func (q *eventQueue) push(ev mqtt.SystemEvent) {
	if q == nil {
		return
	}
	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		select {
		case old := <-q.ch:
			log.Printf("mqtt: event queue full, dropping %s event", old.Event)
		default:
		}
	}
}

// close stops accepting events and waits up to wait for the queued ones to
// be published.
func (q *eventQueue) close(wait time.Duration) {
	if q == nil {
		return
	}
	q.closeOnce.Do(func() { close(q.ch) })
	select {
	case <-q.done:
	case <-time.After(wait):
		log.Printf("mqtt: gave up on %d queued events", len(q.ch))
	}
}

// emit queues a system event carrying a full status snapshot.
func emit(events *eventQueue, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string, retained bool) {
	if events == nil {
		return
	}
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	events.push(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
}
