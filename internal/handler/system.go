package handler

import (
	"context"
	"net/http"
	"time"

	"yieldwallet/pkg/logger"
)

// Pinger is a dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	checks    map[string]Pinger
	logger    logger.Logger
	startTime time.Time
}

// NewSystemHandler builds the health endpoints. checks maps a dependency
// name (database, redis) to its pinger; nil entries are skipped.
func NewSystemHandler(checks map[string]Pinger, log logger.Logger) *SystemHandler {
	live := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			live[name] = p
		}
	}
	return &SystemHandler{
		checks:    live,
		logger:    log,
		startTime: time.Now(),
	}
}

type dependencyStatus struct {
	Status    string `json:"status"` // operational, degraded, outage
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health reports liveness.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready pings every dependency and reports 503 if any is down.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	ready := true
	deps := make(map[string]dependencyStatus, len(h.checks))
	for name, p := range h.checks {
		start := time.Now()
		err := p.Ping(ctx)
		st := dependencyStatus{Status: "operational", LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			ready = false
			st.Status = "outage"
			st.Error = err.Error()
			h.logger.Error("Readiness check failed", map[string]interface{}{
				"dependency": name,
				"error":      err.Error(),
			})
		} else if st.LatencyMs > 200 {
			st.Status = "degraded"
		}
		deps[name] = st
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"dependencies": deps,
	})
}
