package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/caioniehues/clibridge/internal/cli"
)

// StateReporter exposes the supervisor lifecycle state for health output.
type StateReporter interface {
	State() cli.State
}

// HealthHandler serves /health and /ready endpoints.
type HealthHandler struct {
	state     StateReporter
	startTime time.Time
	version   string
	ready     *atomic.Bool
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(state StateReporter, version string) *HealthHandler {
	ready := &atomic.Bool{}
	ready.Store(true)
	return &HealthHandler{
		state:     state,
		startTime: time.Now(),
		version:   version,
		ready:     ready,
	}
}

// SetReady sets the readiness state (false during shutdown).
func (h *HealthHandler) SetReady(v bool) {
	h.ready.Store(v)
}

type healthResponse struct {
	Status  string `json:"status"`
	Session string `json:"session"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// Health returns system health, including the current session state.
// The bridge has no backing services to check; health is about the process
// itself, while /api/v1/availability covers the external tool.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Session: h.state.State().String(),
		Version: h.version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready returns 200 if the server is accepting traffic, 503 during shutdown.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
