package influxdb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fleetd/internal/infrastructure/config"
	"github.com/nerrad567/fleetd/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// These values match docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "fleetd-dev-token",
		Org:           "fleetd",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) *influxdb.Client {
	t.Helper()

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnect(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error for invalid URL")
	}
}

func TestHealthCheck(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	// Create already cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

// collectWriteErrors registers an error callback and returns a getter
// that is safe to call after writes have flushed.
func collectWriteErrors(client *influxdb.Client) func() error {
	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	return func() error {
		mu.Lock()
		defer mu.Unlock()
		return writeErr
	}
}

func TestWriteInventoryEvent(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	lastErr := collectWriteErrors(client)

	client.WriteInventoryEvent("created", "sensor")
	client.WriteInventoryEvent("deleted", "gateway")
	client.Flush()

	// Give a moment for error callback
	time.Sleep(100 * time.Millisecond)

	if err := lastErr(); err != nil {
		t.Errorf("Write error = %v", err)
	}
}

func TestWriteDeviceTotal(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	lastErr := collectWriteErrors(client)

	client.WriteDeviceTotal(42)
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	if err := lastErr(); err != nil {
		t.Errorf("Write error = %v", err)
	}
}

func TestClose(t *testing.T) {
	client := skipIfNoInfluxDB(t)

	// Write something before close
	client.WriteDeviceTotal(1)

	// Close should flush and disconnect
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestWrite_Disconnected(t *testing.T) {
	// Writes on a closed client must be silent no-ops.
	client := skipIfNoInfluxDB(t)
	client.Close()

	client.WriteInventoryEvent("created", "sensor")
	client.WriteDeviceTotal(0)
	client.Flush()
}
