package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-index/internal/database"
	"media-index/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

var processStart = time.Now()

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Scanning bool   `json:"scanning"`

	LastScanStatus string `json:"lastScanStatus,omitempty"`
	LastScanError  string `json:"lastScanError,omitempty"`
	LastScanAt     string `json:"lastScanAt,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	TotalFiles int `json:"totalFiles"`
}

// HealthCheck returns the health status of the service. A store that cannot
// be queried is unhealthy; a failed last scan only degrades the status.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(processStart).Round(time.Second).String(),
		Scanning:     h.indexer.IsScanning(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	total, err := h.store.CountFiles(r.Context())
	if err != nil {
		response.Status = statusUnhealthy
		writeJSONCode(w, http.StatusServiceUnavailable, response)
		return
	}
	response.Ready = true
	response.TotalFiles = total

	if last := h.indexer.LastScan(); last != nil {
		response.LastScanStatus = string(last.Status)
		response.LastScanAt = last.StartedAt.Format(time.RFC3339)
		if last.Status == database.ScanFailed {
			response.Status = statusDegraded
			if last.Err != nil {
				response.LastScanError = last.Err.Error()
			}
		}
	}

	writeJSONCode(w, http.StatusOK, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the record store answers queries
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.CountFiles(r.Context()); err != nil {
		writeJSONCode(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
		})
		return
	}
	writeJSONCode(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
