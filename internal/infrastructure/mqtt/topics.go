package mqtt

import "fmt"

// Topic prefixes for the fleetd MQTT namespace.
//
// All topics live under a single flat prefix:
//
//	fleetd/inventory/{action}   - inventory change events (created, updated, deleted)
//	fleetd/system/status        - online/offline status (retained, LWT)
const (
	// TopicPrefix is the base for all fleetd topics.
	TopicPrefix = "fleetd"

	// TopicPrefixInventory is the base for inventory event topics.
	TopicPrefixInventory = "fleetd/inventory"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "fleetd/system"
)

// Topics provides builders for fleetd MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.InventoryEvent("created")
//	// Returns: "fleetd/inventory/created"
type Topics struct{}

// InventoryEvent returns the topic for an inventory change event.
//
// Example: fleetd/inventory/created
func (Topics) InventoryEvent(action string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixInventory, action)
}

// AllInventoryEvents returns the wildcard pattern matching every inventory event.
//
// Example: fleetd/inventory/+
func (Topics) AllInventoryEvents() string {
	return TopicPrefixInventory + "/+"
}

// SystemStatus returns the topic for fleetd's online/offline status.
// Published retained so new subscribers immediately see the current status;
// also used as the Last Will topic for crash detection.
//
// Example: fleetd/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
