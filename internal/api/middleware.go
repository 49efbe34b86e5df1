package api

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/fleetd/internal/auth"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyIdentity  contextKey = "identity"
)

// maxRequestBodySize limits request bodies to 1 MB.
const maxRequestBodySize = 1 << 20

// identity carries the authenticated user through the request context.
type identity struct {
	UserID   int64
	Username string
}

// requestIDMiddleware assigns a unique ID to each request for tracing.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics and returns a 500 error.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
				s.logger.Error("panic recovered",
					"error", err,
					"path", r.URL.Path,
					"request_id", requestID,
				)
				writeInternalError(w, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles Cross-Origin Resource Sharing headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range s.cfg.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", joinOrDefault(s.cfg.CORS.AllowedMethods, "GET, POST, PUT, DELETE, OPTIONS"))
			w.Header().Set("Access-Control-Allow-Headers", joinOrDefault(s.cfg.CORS.AllowedHeaders, "Content-Type"))
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bodySizeLimitMiddleware caps request body size.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware authenticates requests via the session cookie.
//
// The cookie carries the raw session token; only its SHA-256 hash is
// stored server-side. Requests with no cookie, an unknown token, or an
// expired session are rejected with 401. Expired sessions found here are
// deleted lazily; the background sweeper catches the rest.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.authCfg.CookieName)
		if err != nil || cookie.Value == "" {
			writeUnauthorized(w, "authentication required")
			return
		}

		tokenHash := auth.HashToken(cookie.Value)

		session, err := s.sessions.GetByTokenHash(r.Context(), tokenHash)
		if err != nil {
			s.logger.Error("session lookup failed", "error", err)
			writeInternalError(w, "internal server error")
			return
		}
		if session == nil {
			writeUnauthorized(w, "invalid or expired session")
			return
		}
		if session.Expired() {
			if err := s.sessions.DeleteByTokenHash(r.Context(), tokenHash); err != nil {
				s.logger.Warn("deleting expired session failed", "error", err)
			}
			writeUnauthorized(w, "invalid or expired session")
			return
		}

		user, err := s.users.GetByID(r.Context(), session.UserID)
		if err != nil {
			s.logger.Error("session user lookup failed", "error", err)
			writeInternalError(w, "internal server error")
			return
		}
		if user == nil {
			// Session references a deleted user. Treat as unauthenticated.
			writeUnauthorized(w, "invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity, identity{
			UserID:   user.ID,
			Username: user.Username,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFromContext returns the authenticated identity, if present.
func identityFromContext(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(identity)
	return id, ok
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack delegates to the wrapped writer so WebSocket upgrades work
// through the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}

// generateRequestID creates a random 16-character hex request ID.
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// joinOrDefault joins a string slice with commas, or returns the default.
func joinOrDefault(values []string, def string) string {
	if len(values) == 0 {
		return def
	}
	return strings.Join(values, ", ")
}
