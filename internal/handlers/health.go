package handlers

import (
	"context"
	"net/http"
	"time"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string           `json:"status"` // "healthy" or "degraded"
	Version    string           `json:"version"`
	Online     bool             `json:"online"`
	QueueDepth int              `json:"queue_depth"`
	Checks     map[string]Check `json:"checks"`
	Timestamp  string           `json:"timestamp"`
}

// Health handles the health check endpoint. Being offline does not degrade
// the daemon; only a failing durable store does.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	if h.kv != nil {
		start := time.Now()
		if err := h.kv.Ping(ctx); err != nil {
			checks["store"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["store"] = Check{Status: "pass", Latency: time.Since(start).String(), Message: h.backend}
		}
	} else {
		checks["store"] = Check{Status: "fail", Message: "not configured"}
		allHealthy = false
	}

	online := h.monitor.Online()
	if online {
		checks["assistant"] = Check{Status: "pass"}
	} else {
		checks["assistant"] = Check{Status: "fail", Message: "offline"}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:     status,
		Version:    version,
		Online:     online,
		QueueDepth: h.dispatcher.Queue().Len(),
		Checks:     checks,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	UserID  string `json:"user_id"`
}

// Root handles the root endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:    "Carebot",
		Version: version,
		UserID:  h.userID,
	})
}
