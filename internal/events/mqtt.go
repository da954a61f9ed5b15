package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	qosAtLeastOnce = 1
	publishTimeout = 5 * time.Second
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes events as JSON to <prefix>/bookings/<id>/<type>.
type MQTTPublisher struct {
	client tokenPublisher
	prefix string
	closer func()
}

// NewMQTTPublisher connects to the broker and returns a publisher.
func NewMQTTPublisher(brokerURL, clientID, prefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connect to %s: timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", brokerURL, err)
	}
	log.WithFields(log.Fields{"broker": brokerURL, "client_id": clientID}).Info("Connected to MQTT broker")

	p := newMQTTPublisher(client, prefix)
	p.closer = func() { client.Disconnect(250) }
	return p, nil
}

func newMQTTPublisher(client tokenPublisher, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: strings.Trim(prefix, "/")}
}

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(event Event) string {
	return fmt.Sprintf("%s/bookings/%s/%s", p.prefix, event.BookingID, event.Type)
}

// Publish sends the event with QoS 1 and waits for the acknowledgement.
func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.Topic(event), qosAtLeastOnce, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return ErrPublishTimeout
	}
	return token.Error()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}
