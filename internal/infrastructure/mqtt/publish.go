package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outgoing payloads at 1MB, in line with common
// broker limits. Inventory events are a few hundred bytes; anything
// near this limit is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends payload to the given topic and waits for the broker
// to acknowledge it (QoS permitting).
//
// Retained messages are kept by the broker and handed to every new
// subscriber; fleetd retains only the system status topic, never
// inventory events.
//
// Parameters:
//   - topic: Destination topic, e.g. "fleetd/inventory/created"
//   - payload: Message body, typically JSON, at most 1MB
//   - qos: Delivery guarantee (0 at most once, 1 at least once, 2 exactly once)
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: nil on success, or a wrapped sentinel from errors.go
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
