package events

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/fleetd/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client used for event publishing.
// Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MQTTPublisher forwards bus events to the MQTT broker so external
// tooling can react to inventory changes without polling the REST API.
//
// Events are published to fleetd/inventory/<action> with QoS 1.
type MQTTPublisher struct {
	client Publisher
	qos    byte
	logger Logger
}

// NewMQTTPublisher creates a publisher forwarding to the given client.
func NewMQTTPublisher(client Publisher, qos byte) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		qos:    qos,
		logger: noopLogger{},
	}
}

// SetLogger sets a logger for publish failures.
func (p *MQTTPublisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Run consumes events from the bus until the context is cancelled or the
// bus is closed. Intended to be launched as a goroutine.
func (p *MQTTPublisher) Run(ctx context.Context, bus *Bus) {
	events, cancel := bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			p.publish(event)
		}
	}
}

// publish serialises and sends a single event. Failures are logged and
// swallowed: MQTT delivery is best-effort and must never affect the
// inventory write path.
func (p *MQTTPublisher) publish(event Event) {
	if !p.client.IsConnected() {
		p.logger.Debug("skipping mqtt event publish, broker not connected",
			"event_id", event.ID,
			"action", event.Action)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal inventory event",
			"event_id", event.ID,
			"error", err)
		return
	}

	topic := mqtt.Topics{}.InventoryEvent(event.Action)
	if err := p.client.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("failed to publish inventory event",
			"event_id", event.ID,
			"topic", topic,
			"error", err)
	}
}
