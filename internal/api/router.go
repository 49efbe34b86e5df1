package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the HTTP route tree with all middleware and handlers.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Get("/auth/user", s.handleCurrentUser)

			r.Get("/devices", s.handleListDevices)
			r.Post("/devices", s.handleCreateDevice)
			r.Post("/devices/search", s.handleSearchDevices)
			r.Put("/devices/{id}", s.handleUpdateDevice)
			r.Delete("/devices/{id}", s.handleDeleteDevice)

			r.Get("/audit", s.handleListAuditLogs)

			r.Get("/events", s.handleEvents)
		})
	})

	return r
}

// handleHealth returns the service health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}
