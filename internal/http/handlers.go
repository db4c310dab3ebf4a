package http

import (
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().BodyJSON(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

// handleReady reports ready once a snapshot has been loaded and the
// templates parsed. A failed reload after a successful one keeps the
// service ready since the previous snapshot is still served.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	snap := s.store.Snapshot()
	records := map[string]interface{}{
		"records":    snap.Len(),
		"accounts":   snap.Accounts().Len(),
		"malformed":  len(snap.Malformed()),
		"generation": snap.Generation(),
	}
	if err := s.store.LastError(); err != nil {
		records["last_error"] = err.Error()
	}
	if snap.Loaded() {
		records["status"] = "ok"
		records["loaded_at"] = snap.LoadedAt().Format(time.RFC3339)
	} else {
		records["status"] = "not_loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}
	checks["records"] = records

	checks["sessions"] = map[string]interface{}{"active": s.sessions.Size()}
	checks["rate_limiter"] = map[string]interface{}{"active_clients": s.rateLimiter.activeClients()}

	NewHTMXResponse().
		Status(httpStatus).
		BodyJSON(map[string]interface{}{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"checks":    checks,
		}).
		Write(w)
}
