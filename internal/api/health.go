package api

import (
	"context"
	"net/http"
	"time"
)

// handleLiveness reports process liveness only.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness checks the SQLite connection and, when configured, Redis.
// Redis being down is degraded, not fatal: the ledger works without a cache.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	status := http.StatusOK

	if err := s.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	if s.rdb != nil {
		checks["redis"] = "ok"
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "degraded: " + err.Error()
		}
	}

	writeJSON(w, status, checks)
}
