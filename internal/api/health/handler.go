package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// ModelSource reports whether the model artifact registry is ready.
type ModelSource interface {
	Ready() bool
}

// Handler provides the health check endpoint
type Handler struct {
	models      ModelSource
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler
func New(models ModelSource, serviceName, version string) *Handler {
	return &Handler{
		models:      models,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// Status is the health check response body
type Status struct {
	Status       string `json:"status"` // "healthy" or "degraded"
	ModelsLoaded bool   `json:"models_loaded"`
	Service      string `json:"service"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Timestamp    string `json:"timestamp"`
}

// HandleHealth reports service health. The service is degraded, not down,
// when models failed to load, so this always answers 200.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := h.models.Ready()

	status := Status{
		Status:       "healthy",
		ModelsLoaded: loaded,
		Service:      h.serviceName,
		Version:      h.version,
		Uptime:       time.Since(h.startTime).String(),
		Timestamp:    time.Now().Format(time.RFC3339),
	}
	if !loaded {
		status.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}
