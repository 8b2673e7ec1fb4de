package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/middleware"
	"github.com/feedreel/feed-video-backend/monitoring"
	"github.com/feedreel/feed-video-backend/utils"
)

const (
	defaultRendersLimit = 50
	maxRendersLimit     = 200
)

/*
HandleListRenderStatuses lists tracked render records, newest first.

Query Parameters:
  - limit: Maximum number of records to return (default 50, max 200).
  - offset: Number of records to skip.

Response:
  - 200 OK: Render records with pagination info.
  - 400 Bad Request: Invalid limit or offset parameter.
*/
func (h *Handler) HandleListRenderStatuses(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	limit := defaultRendersLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			middleware.RespondBadRequest(w, fmt.Errorf("invalid limit parameter"), requestID)
			return
		}
		limit = parsed
		if limit > maxRendersLimit {
			limit = maxRendersLimit
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			middleware.RespondBadRequest(w, fmt.Errorf("invalid offset parameter"), requestID)
			return
		}
		offset = parsed
	}

	jobs, err := h.Tracker.List(r.Context())
	if err != nil {
		monitoring.RecordTrackerOperation("list", "failed")
		middleware.RespondInternalError(w, fmt.Errorf("failed to list render statuses: %v", err), requestID)
		return
	}
	monitoring.RecordTrackerOperation("list", "success")

	total := len(jobs)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := jobs[offset:end]

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"count":   len(page),
		"total":   total,
		"limit":   limit,
		"offset":  offset,
		"renders": page,
	})
}

/*
HandleGetRenderStatus retrieves the tracked record for one render.

Query Parameters:
  - render_id: The render ID to look up.

Response:
  - 200 OK: The render record.
  - 400 Bad Request: Missing render_id parameter.
  - 404 Not Found: No record for this render ID.
*/
func (h *Handler) HandleGetRenderStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	renderID := r.URL.Query().Get("render_id")
	if renderID == "" {
		middleware.RespondBadRequest(w, fmt.Errorf("render_id parameter is missing"), requestID)
		return
	}

	job, err := h.Tracker.Get(r.Context(), renderID)
	if err != nil {
		if isNotFound(err) {
			middleware.RespondNotFound(w, fmt.Errorf("render not found"), requestID)
			return
		}
		monitoring.RecordTrackerOperation("get", "failed")
		middleware.RespondInternalError(w, fmt.Errorf("failed to load render status: %v", err), requestID)
		return
	}
	monitoring.RecordTrackerOperation("get", "success")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(job)
}

/*
HandleListCloudRenders proxies the rendering account's render listing.

Response:
  - 200 OK: The raw listing from the rendering API.
  - 503 Service Unavailable: The rendering API could not be reached.
*/
func (h *Handler) HandleListCloudRenders(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	listing, err := h.RenderLister.ListRenders(r.Context())
	if err != nil {
		h.Logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to list cloud renders")
		middleware.RespondServiceUnavailable(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(listing)
}
