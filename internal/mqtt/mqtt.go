// Package mqtt announces alarm firings on an MQTT broker, for home
// automation that should react to an alarm (lights, blinds, coffee).
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
	Retain   bool
}

// Event is the JSON payload published when an alarm fires.
type Event struct {
	AlarmID  string    `json:"alarm_id"`
	Label    string    `json:"label"`
	Message  string    `json:"message"`
	Source   string    `json:"source"`
	Repeat   string    `json:"repeat"`
	Time     time.Time `json:"time"`
	Disarmed bool      `json:"disarmed"`
	Silenced bool      `json:"silenced,omitempty"`
}

// Publisher sends firing events to one topic.
type Publisher struct {
	opts Options
}

// NewPublisher returns a Publisher for o. The topic defaults to
// "wakeup/alarms" and the client id to "wakeup".
func NewPublisher(o Options) *Publisher {
	if o.Topic == "" {
		o.Topic = "wakeup/alarms"
	}
	if o.ClientID == "" {
		o.ClientID = "wakeup"
	}
	return &Publisher{opts: o}
}

// Topic returns the topic an event for alarmID is published on.
func (p *Publisher) Topic(alarmID string) string {
	return strings.TrimRight(p.opts.Topic, "/") + "/" + alarmID + "/fired"
}

// PublishFiring marshals e and publishes it.
func (p *Publisher) PublishFiring(e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("mqtt: marshal: %w", err)
	}
	o := p.opts
	o.Topic = p.Topic(e.AlarmID)
	return Publish(o, string(payload))
}

// Publish connects to an MQTT broker, publishes a message to the given
// topic, and disconnects. Each invocation creates a fresh connection;
// alarms fire at most a few times a day.
func Publish(o Options, message string) error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetConnectTimeout(5 * time.Second)

	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}

	client := pahomqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt: connect timeout")
	}
	if tok.Error() != nil {
		return fmt.Errorf("mqtt: connect: %w", tok.Error())
	}
	defer client.Disconnect(250)

	pub := client.Publish(o.Topic, o.QoS, o.Retain, message)
	if !pub.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt: publish timeout")
	}
	if pub.Error() != nil {
		return fmt.Errorf("mqtt: publish: %w", pub.Error())
	}
	return nil
}
