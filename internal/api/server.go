// Package api provides the HTTP REST API and WebSocket server for fleetd.
//
// It exposes the device inventory, cookie-session authentication, the
// audit trail, and a live inventory event stream to the web UI.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/fleetd/internal/audit"
	"github.com/nerrad567/fleetd/internal/auth"
	"github.com/nerrad567/fleetd/internal/device"
	"github.com/nerrad567/fleetd/internal/events"
	"github.com/nerrad567/fleetd/internal/infrastructure/config"
	"github.com/nerrad567/fleetd/internal/infrastructure/influxdb"
	"github.com/nerrad567/fleetd/internal/infrastructure/logging"
	"github.com/nerrad567/fleetd/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// sessionSweepInterval is how often expired sessions are purged.
const sessionSweepInterval = 5 * time.Minute

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Auth      config.AuthConfig
	Logger    *logging.Logger
	Inventory *device.Inventory
	Users     auth.UserRepository
	Sessions  auth.SessionRepository
	AuditRepo audit.Repository
	Bus       *events.Bus
	MQTT      *mqtt.Client     // optional: connection state for /metrics
	Influx    *influxdb.Client // optional: connection state for /metrics
	DB        *sql.DB          // optional: pool stats for /metrics
	Version   string
}

// Server is the HTTP API server for fleetd.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub,
// and the background loops (audit drain, session sweep, event bridge).
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	authCfg   config.AuthConfig
	logger    *logging.Logger
	inventory *device.Inventory
	users     auth.UserRepository
	sessions  auth.SessionRepository
	auditRepo audit.Repository
	bus       *events.Bus
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	db        *sql.DB
	version   string

	server    *http.Server
	hub       *Hub
	auditCh   chan *audit.AuditLog
	startTime time.Time
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, inventory, stores)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Inventory == nil {
		return nil, fmt.Errorf("device inventory is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	// AuditRepo, Bus, MQTT, Influx and DB are optional; the related
	// surfaces degrade gracefully without them.

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		authCfg:   deps.Auth,
		logger:    deps.Logger,
		inventory: deps.Inventory,
		users:     deps.Users,
		sessions:  deps.Sessions,
		auditRepo: deps.AuditRepo,
		bus:       deps.Bus,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		db:        deps.DB,
		version:   deps.Version,
		auditCh:   make(chan *audit.AuditLog, auditChanSize),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and the background
// loops (audit drain, session sweeper, event bridge), then launches the
// HTTP listener in a background goroutine. The server can be stopped
// with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	s.startTime = time.Now()

	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	if s.auditRepo != nil {
		go s.drainAuditLog(srvCtx)
	}

	go s.sessionSweepLoop(srvCtx)

	// Bridge inventory events to WebSocket clients.
	if s.bus != nil {
		go s.bridgeEvents(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, audit drain, sweeper, bridge)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// sessionSweepLoop periodically deletes expired session rows.
func (s *Server) sessionSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.sessions.DeleteExpired(ctx)
			if err != nil {
				s.logger.Warn("expired session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Debug("expired sessions removed", "count", removed)
			}
		}
	}
}
