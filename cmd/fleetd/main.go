// fleetd - Device Fleet Inventory Service
//
// This is the main entry point for fleetd. It tracks a fleet of
// field devices (type, hardware id, firmware revision, network and
// SSH access details) behind a cookie-authenticated REST API, with
// live change events over WebSocket and optional MQTT and InfluxDB
// fan-out.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nerrad567/fleetd/internal/api"
	"github.com/nerrad567/fleetd/internal/audit"
	"github.com/nerrad567/fleetd/internal/auth"
	"github.com/nerrad567/fleetd/internal/device"
	"github.com/nerrad567/fleetd/internal/events"
	"github.com/nerrad567/fleetd/internal/infrastructure/config"
	"github.com/nerrad567/fleetd/internal/infrastructure/database"
	"github.com/nerrad567/fleetd/internal/infrastructure/influxdb"
	"github.com/nerrad567/fleetd/internal/infrastructure/logging"
	"github.com/nerrad567/fleetd/internal/infrastructure/mqtt"
	"github.com/nerrad567/fleetd/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Load .env if present; secrets like FLEETD_INFLUXDB_TOKEN usually
	// live there in development.
	_ = godotenv.Load()

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting fleetd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx, migrations.Files()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	userRepo := auth.NewUserRepository(db.DB)
	sessionRepo := auth.NewSessionRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	deviceRepo := device.NewSQLiteRepository(db.DB)

	// Seed the first-boot admin account (no-op when users exist)
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, cfg.Auth.Seed, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Event bus and inventory
	bus := events.NewBus()
	defer bus.Close()

	inventory := device.NewInventory(deviceRepo, bus)
	inventory.SetLogger(log)

	count, err := inventory.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting devices: %w", err)
	}
	log.Info("device inventory initialised", "devices", count)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		// Mirror inventory events to the broker
		publisher := events.NewMQTTPublisher(mqttClient, byte(cfg.MQTT.QoS))
		publisher.SetLogger(log)
		go publisher.Run(ctx, bus)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		// Record inventory activity as time series
		recorder := events.NewInfluxRecorder(influxClient, inventory.Count)
		recorder.SetLogger(log)
		go recorder.Run(ctx, bus)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Auth:      cfg.Auth,
		Logger:    log,
		Inventory: inventory,
		Users:     userRepo,
		Sessions:  sessionRepo,
		AuditRepo: auditRepo,
		Bus:       bus,
		MQTT:      mqttClient,
		Influx:    influxClient,
		DB:        db.DB,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (graceful drain)
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Event bus
	// 5. Database

	log.Info("fleetd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FLEETD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLEETD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - server: API server to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
