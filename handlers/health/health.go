// Package health provides health check handlers for the feed video backend
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/middleware"
	"github.com/feedreel/feed-video-backend/types"
	"github.com/feedreel/feed-video-backend/utils"
)

// StatusLister is the tracker operation the health probe exercises
type StatusLister interface {
	List(ctx context.Context) ([]*types.RenderJob, error)
}

// HealthStatus represents the health check response structure
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
}

// Handler contains dependencies for health handlers
type Handler struct {
	Tracker   StatusLister
	PublicDir string
	Logger    *logrus.Logger
}

// NewHandler creates a new health handler
func NewHandler(tracker StatusLister, publicDir string, logger *logrus.Logger) *Handler {
	return &Handler{
		Tracker:   tracker,
		PublicDir: publicDir,
		Logger:    logger,
	}
}

// HandleHealthCheck provides a health check endpoint for monitoring
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
		Services:  make(map[string]string),
		Uptime:    time.Since(startTime).String(),
	}

	if err := h.checkTrackerHealth(); err != nil {
		health.Status = "unhealthy"
		health.Services["tracker"] = "unhealthy: " + err.Error()
		h.Logger.WithFields(logrus.Fields{
			"service": "tracker",
			"error":   err.Error(),
		}).Error("Health check failed for render tracker")
	} else {
		health.Services["tracker"] = "healthy"
	}

	if err := h.checkPublicDir(); err != nil {
		health.Status = "unhealthy"
		health.Services["public_dir"] = "unhealthy: " + err.Error()
	} else {
		health.Services["public_dir"] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// HandleLivenessCheck provides a simple liveness probe
func (h *Handler) HandleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleReadinessCheck provides a readiness probe
func (h *Handler) HandleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
	}

	if err := h.checkTrackerHealth(); err != nil {
		middleware.RespondServiceUnavailable(w, err, requestID)
		return
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
		"services": map[string]string{
			"tracker": "ready",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkTrackerHealth verifies the render status store is reachable
func (h *Handler) checkTrackerHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := h.Tracker.List(ctx)
	return err
}

// checkPublicDir verifies the video directory exists
func (h *Handler) checkPublicDir() error {
	_, err := os.Stat(h.PublicDir)
	return err
}

var startTime = time.Now()
