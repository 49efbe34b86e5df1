package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the GET /api/metrics response.
type SystemMetrics struct {
	Timestamp     time.Time       `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	InfluxDB      InfluxMetrics   `json:"influxdb"`
	Devices       DeviceMetrics   `json:"devices"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines     int    `json:"goroutines"`
	MemAllocBytes  uint64 `json:"mem_alloc_bytes"`
	MemSysBytes    uint64 `json:"mem_sys_bytes"`
	GCPauseTotalNs uint64 `json:"gc_pause_total_ns"`
	NumGC          uint32 `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT broker connection status.
type MQTTMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// InfluxMetrics contains InfluxDB connection status.
type InfluxMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// DeviceMetrics contains inventory statistics.
type DeviceMetrics struct {
	Total int `json:"total"`
}

// DatabaseMetrics contains SQLite connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns a snapshot of system health and statistics.
//
// GET /api/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:     runtime.NumGoroutine(),
			MemAllocBytes:  mem.Alloc,
			MemSysBytes:    mem.Sys,
			GCPauseTotalNs: mem.PauseTotalNs,
			NumGC:          mem.NumGC,
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	if s.mqtt != nil {
		metrics.MQTT.Enabled = true
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}

	if s.influx != nil {
		metrics.InfluxDB.Enabled = true
		metrics.InfluxDB.Connected = s.influx.IsConnected()
	}

	if total, err := s.inventory.Count(r.Context()); err == nil {
		metrics.Devices.Total = total
	} else {
		s.logger.Warn("device count failed", "error", err)
	}

	if s.db != nil {
		stats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: stats.OpenConnections,
			InUse:           stats.InUse,
			Idle:            stats.Idle,
			WaitCount:       stats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
