package events

import (
	"context"
	"time"
)

// MetricsWriter is the subset of the InfluxDB client used for event
// telemetry. Satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteInventoryEvent(action string, deviceType string)
	WriteDeviceTotal(count int)
}

// DeviceCounter reports the current inventory size for the periodic gauge.
type DeviceCounter func(ctx context.Context) (int, error)

// defaultGaugeInterval is how often the device-total gauge is written.
const defaultGaugeInterval = time.Minute

// InfluxRecorder writes inventory telemetry to InfluxDB: one point per
// change event, plus a periodic gauge of total fleet size.
type InfluxRecorder struct {
	writer        MetricsWriter
	count         DeviceCounter
	gaugeInterval time.Duration
	logger        Logger
}

// NewInfluxRecorder creates a recorder using the given writer and counter.
func NewInfluxRecorder(writer MetricsWriter, count DeviceCounter) *InfluxRecorder {
	return &InfluxRecorder{
		writer:        writer,
		count:         count,
		gaugeInterval: defaultGaugeInterval,
		logger:        noopLogger{},
	}
}

// SetLogger sets a logger for counter failures.
func (r *InfluxRecorder) SetLogger(logger Logger) {
	r.logger = logger
}

// SetGaugeInterval overrides the device-total gauge interval.
// Primarily for tests.
func (r *InfluxRecorder) SetGaugeInterval(d time.Duration) {
	if d > 0 {
		r.gaugeInterval = d
	}
}

// Run consumes events from the bus and writes the periodic gauge until
// the context is cancelled or the bus is closed. Intended to be launched
// as a goroutine.
func (r *InfluxRecorder) Run(ctx context.Context, bus *Bus) {
	events, cancel := bus.Subscribe()
	defer cancel()

	ticker := time.NewTicker(r.gaugeInterval)
	defer ticker.Stop()

	// Record the starting fleet size immediately.
	r.writeGauge(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.writer.WriteInventoryEvent(event.Action, event.Device.DeviceType)
		case <-ticker.C:
			r.writeGauge(ctx)
		}
	}
}

func (r *InfluxRecorder) writeGauge(ctx context.Context) {
	total, err := r.count(ctx)
	if err != nil {
		r.logger.Warn("failed to count devices for telemetry gauge", "error", err)
		return
	}
	r.writer.WriteDeviceTotal(total)
}
