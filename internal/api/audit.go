package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/fleetd/internal/audit"
)

// auditChanSize buffers audit writes so request handlers never block on
// the database. When the buffer fills, entries are dropped with a warning.
const auditChanSize = 256

// auditDrainTimeout bounds the final flush during shutdown.
const auditDrainTimeout = 2 * time.Second

// auditLog queues an audit entry for asynchronous persistence.
// Best-effort: dropped (with a warning) when the repository is absent
// or the buffer is full.
func (s *Server) auditLog(r *http.Request, action, entityType, entityID, actor string, details map[string]any) {
	if s.auditRepo == nil {
		return
	}

	entry := &audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Source:     "api",
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}

	select {
	case s.auditCh <- entry:
	default:
		requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
		s.logger.Warn("audit buffer full, entry dropped",
			"action", action,
			"request_id", requestID,
		)
	}
}

// drainAuditLog persists queued audit entries until the context is
// cancelled, then flushes whatever remains in the buffer.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			if err := s.auditRepo.Create(ctx, entry); err != nil {
				s.logger.Warn("writing audit log failed", "error", err, "action", entry.Action)
			}
		case <-ctx.Done():
			// Final flush with a fresh context; the server context is gone.
			flushCtx, cancel := context.WithTimeout(context.Background(), auditDrainTimeout)
			defer cancel()
			for {
				select {
				case entry := <-s.auditCh:
					if err := s.auditRepo.Create(flushCtx, entry); err != nil {
						s.logger.Warn("writing audit log failed", "error", err, "action", entry.Action)
					}
				default:
					return
				}
			}
		}
	}
}

// handleListAuditLogs returns paginated audit log entries.
//
// GET /api/audit?action=&entity_type=&entity_id=&limit=&offset=
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeJSON(w, http.StatusOK, &audit.ListResult{Logs: []audit.AuditLog{}})
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs failed", "error", err)
		writeInternalError(w, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
