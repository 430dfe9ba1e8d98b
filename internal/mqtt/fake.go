package mqtt

import "sync"

// Message is one published MQTT message.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient records published messages for test assertions.
// It is safe for concurrent use.
type FakeClient struct {
	mu sync.Mutex

	// Messages contains every successfully published message in order.
	Messages []Message

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Connected controls the return value of IsConnected.
	Connected bool

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeClient creates a connected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{Connected: true}
}

// Publish records the message.
func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SetConnected changes the connection state.
func (f *FakeClient) SetConnected(c bool) {
	f.mu.Lock()
	f.Connected = c
	f.mu.Unlock()
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset clears recorded messages and injected errors.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	f.Messages = nil
	f.PublishError = nil
	f.mu.Unlock()
}
