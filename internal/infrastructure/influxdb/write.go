package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteInventoryEvent records one inventory change as a point in the
// inventory_events measurement, tagged by action and device type so
// dashboards can chart registration activity per fleet segment.
// Dropped silently when the client is not connected.
//
// Parameters:
//   - action: The inventory action ("created", "updated", "deleted")
//   - deviceType: The type of the affected device (e.g., "sensor", "gateway")
func (c *Client) WriteInventoryEvent(action string, deviceType string) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"inventory_events",
		map[string]string{
			"action":      action,
			"device_type": deviceType,
		},
		map[string]interface{}{"count": 1},
		time.Now(),
	))
}

// WriteDeviceTotal records the current inventory size as a gauge in
// the inventory_totals measurement, for fleet growth dashboards.
// Dropped silently when the client is not connected.
//
// Parameters:
//   - count: Total number of devices currently registered
func (c *Client) WriteDeviceTotal(count int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"inventory_totals",
		nil,
		map[string]interface{}{"devices": count},
		time.Now(),
	))
}
