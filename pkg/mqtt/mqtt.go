// Package mqtt publishes inference reports to a broker.
package mqtt

import (
	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

// quiesce is the number of milliseconds Disconnect waits for in-flight
// messages to complete.
const quiesce = 250

// Handler is the client side of the report broker connection.
type Handler struct {
	handler mqttlib.Client

	// C is the publish channel; every message sent to C is published by
	// the Service goroutine.
	C chan Message
}

// Message is one report to publish.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// New creates an unconnected handler.
func New() *Handler {
	return &Handler{
		C: make(chan Message),
	}
}

// Connect connects to the broker.
// An empty broker string disables publishing; messages are then discarded.
func (m *Handler) Connect(broker string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().AddBroker(broker)
	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect re-establishes the broker connection.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	<-t.Done()
	return t.Error()
}

// Disconnect ends the broker connection.
func (m *Handler) Disconnect() error {
	if m.handler == nil {
		return nil
	}

	m.handler.Disconnect(quiesce)
	return nil
}

// Service consumes channel C and publishes each message.
// Messages without a connected handler or without a topic are dropped.
// Service returns when C is closed; run it in its own goroutine.
func (m *Handler) Service() {
	for msg := range m.C {
		if m.handler == nil || msg.Topic == "" {
			continue
		}

		if !m.handler.IsConnected() {
			debug.DebugLog.Print("mqtt broker not connected, reconnecting")

			if err := m.ReConnect(); err != nil {
				debug.ErrorLog.Printf("mqtt reconnect: %v", err)
				continue
			}
		}

		debug.DebugLog.Printf("publishing %d bytes to topic %v", len(msg.Payload), msg.Topic)
		t := m.handler.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

		// publish tokens complete asynchronously; log failures without
		// blocking the publish channel
		go func(t mqttlib.Token, topic string) {
			<-t.Done()
			if err := t.Error(); err != nil {
				debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
			}
		}(t, msg.Topic)
	}
}
