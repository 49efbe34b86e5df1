// Package events provides the in-process event bus for inventory changes.
//
// Every create, update, and delete in the device inventory publishes an
// Event to the Bus. Consumers fan the events out to their own transports:
//
//   - The API server bridges events to connected WebSocket clients
//   - MQTTPublisher forwards events to the MQTT broker
//   - InfluxRecorder writes event telemetry to InfluxDB
//
// Delivery is best-effort by design: subscribers that cannot keep up drop
// events rather than blocking the inventory write path. Consumers that
// need a complete history should read the audit log instead.
//
// Event payloads carry a DeviceSnapshot without the SSH password, since
// events reach transports that must not see credentials.
package events
