// Package mqtt publishes fleetd's inventory events to an MQTT broker.
//
// fleetd is purely a producer on the bus. Inventory changes go out on
// fleetd/inventory/{action} so external tooling (provisioning scripts,
// monitoring dashboards) can react to device registrations without
// polling the REST API, and fleetd's own availability is visible on
// the retained fleetd/system/status topic, backed by a Last Will for
// crash detection.
//
//	fleetd -> MQTT Broker -> consumers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.InventoryEvent("created")
//	client.Publish(topic, payload, 1, false)
//
// The connection auto-reconnects with exponential backoff; publishes
// attempted while the broker is unreachable fail fast with
// ErrNotConnected rather than queueing.
package mqtt
