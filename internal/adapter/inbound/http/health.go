package http

import (
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// healthResponse is the JSON response from the /healthz endpoint.
type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// handleHealth reports server liveness and basic runtime info.
// GET /healthz
func (h *APIHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]string{
		"goroutines": fmt.Sprintf("%d", runtime.NumGoroutine()),
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
	}
	h.respondJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Checks:  checks,
		Version: h.version,
	})
}
