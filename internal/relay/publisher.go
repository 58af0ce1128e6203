package relay

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher adapts the paho client to the engine's publisher contract.
// Every publish is bounded by Timeout: a broker that stops acking must not
// wedge the fan-out, so an expired wait counts as that target failing.
type MQTTPublisher struct {
	Client  mqtt.Client
	QoS     byte
	Timeout time.Duration
}

func (p MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.Client.Publish(topic, p.QoS, false, payload)
	if !token.WaitTimeout(p.Timeout) {
		return fmt.Errorf("publish to %s: no ack within %s", topic, p.Timeout)
	}
	return token.Error()
}
