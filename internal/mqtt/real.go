package mqtt

import (
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectWait = 3 * time.Second
	publishWait = 2 * time.Second
)

// RealClient is a Client backed by an actual MQTT broker.
type RealClient struct {
	client paho.Client
}

// NewRealClient connects to broker. The connection is retried in the
// background, so an unreachable broker does not stop the controller from
// starting; only a rejected connection is an error.
func NewRealClient(broker, clientID string) (*RealClient, error) {
	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("mqtt: connected to %s", broker)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectWait) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealClient{client: client}, nil
}

// Publish sends payload and waits up to publishWait for the broker.
func (c *RealClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishWait) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(250)
	return nil
}
