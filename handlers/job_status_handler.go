package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/middleware"
	"github.com/feedreel/feed-video-backend/utils"
)

/*
HandleGetJobStatus retrieves the status of a background batch job.

Query Parameters:
  - job_id: The ID of the job to check.

Example:

	GET /job-status?job_id=job_1234567890_abc123

Response:
  - 200 OK: Job status information.
  - 400 Bad Request: Missing job_id parameter.
  - 404 Not Found: Job not found.
*/
func (h *Handler) HandleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		middleware.RespondBadRequest(w, fmt.Errorf("job_id parameter is missing"), requestID)
		return
	}

	jobStatus, exists := h.AsyncProcessor.GetJobStatus(jobID)
	if !exists {
		middleware.RespondNotFound(w, fmt.Errorf("job not found"), requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
		"status":     jobStatus.Status,
	}).Info("Job status retrieved")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jobStatus)
}
