// Package influxdb records fleetd's time-series metrics.
//
// Two measurements are written: inventory_events, one point per
// create/update/delete tagged by device type, and inventory_totals,
// a gauge of the fleet size. Together they let dashboards answer
// "how fast is the fleet churning" and "how big is it" without
// touching the REST API.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without metrics
//	}
//	defer client.Close()
//
//	client.WriteInventoryEvent("created", "sensor")
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size and flush_interval
// in config.yaml), so a slow or absent InfluxDB never stalls an
// inventory operation. Batch failures arrive asynchronously through
// the SetOnError callback; connection and health errors are returned
// directly.
//
// All methods are safe for concurrent use.
package influxdb
