package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("FLEETD_CONFIG")
	defer os.Setenv("FLEETD_CONFIG", originalEnv)

	os.Setenv("FLEETD_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: ""
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: 18080
  timeouts:
    read: 30
    write: 60
    idle: 120

auth:
  session_ttl: 60
  cookie_name: fleetd_session
  seed:
    username: admin
    password: test-password

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("FLEETD_CONFIG")
	defer os.Setenv("FLEETD_CONFIG", originalEnv)
	os.Setenv("FLEETD_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies the default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("FLEETD_CONFIG")
	defer os.Setenv("FLEETD_CONFIG", originalEnv)

	os.Unsetenv("FLEETD_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("FLEETD_CONFIG")
	defer os.Setenv("FLEETD_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("FLEETD_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown starts fleetd with MQTT and InfluxDB
// disabled and verifies it shuts down cleanly on context cancellation.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: 18081
  timeouts:
    read: 30
    write: 60
    idle: 120

auth:
  session_ttl: 60
  cookie_name: fleetd_session
  seed:
    username: admin
    password: test-password

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("FLEETD_CONFIG")
	defer os.Setenv("FLEETD_CONFIG", originalEnv)
	os.Setenv("FLEETD_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}

	// The database file was created and migrated.
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}
