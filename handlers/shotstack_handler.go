package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/feed"
	"github.com/feedreel/feed-video-backend/middleware"
	"github.com/feedreel/feed-video-backend/shotstack"
	"github.com/feedreel/feed-video-backend/utils"
)

// ProcessFeedRequest is the body of a feed processing request
type ProcessFeedRequest struct {
	URL        string `json:"url"`
	TemplateID string `json:"templateId"`
	MaxItems   int    `json:"maxItems"`
	Async      bool   `json:"async"`
}

/*
HandleProcessShotstack processes a feed through the cloud rendering API.

Request body:

	{"url": "https://example.com/feed.xml", "templateId": "...", "maxItems": 3}

templateId falls back to the configured default template. maxItems defaults
to 1. With "async": true the batch runs in the background and the response
carries a job ID for /job-status.

Response:
  - 200 OK: Batch report with per-item outcomes.
  - 202 Accepted: Async job submitted.
  - 400 Bad Request: Missing or invalid url, or no template available.
  - 500 Internal Server Error: The feed could not be fetched or parsed.
*/
func (h *Handler) HandleProcessShotstack(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	var req ProcessFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondBadRequest(w, fmt.Errorf("invalid request body: %v", err), requestID)
		return
	}

	if req.URL == "" {
		middleware.RespondBadRequest(w, fmt.Errorf("url field is required"), requestID)
		return
	}

	feedURL, err := validateFeedURL(req.URL)
	if err != nil {
		middleware.RespondValidationError(w, err, requestID)
		return
	}

	templateID := req.TemplateID
	if templateID == "" {
		templateID = h.TemplateID
	}
	if templateID == "" {
		middleware.RespondBadRequest(w, fmt.Errorf("templateId field is required"), requestID)
		return
	}

	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = 1
	}
	if maxItems > h.MaxItemsPerFeed {
		maxItems = h.MaxItemsPerFeed
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id":  requestID,
		"feed_url":    feedURL,
		"template_id": templateID,
		"max_items":   maxItems,
		"async":       req.Async,
	}).Info("Processing feed with cloud renderer")

	if req.Async {
		jobID, err := h.AsyncProcessor.SubmitJob(feedURL, templateID, maxItems, requestID)
		if err != nil {
			h.Logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"feed_url":   feedURL,
				"error":      err.Error(),
			}).Warn("Async job submission rejected")
			middleware.RespondServiceUnavailable(w, err, requestID)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"message":    "Feed processing started",
			"job_id":     jobID,
			"request_id": requestID,
		})
		return
	}

	result, err := h.Batch.Run(r.Context(), feedURL, templateID, maxItems)
	if err != nil {
		respondProcessorError(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Processing completed: %d videos created, %d errors", result.Summary.Success, result.Summary.Errors),
		"summary": result.Summary,
		"videos":  result.Videos,
	})
}

// respondProcessorError maps a processing failure to its error response.
// Feed errors are a 500 with FEED_UNAVAILABLE details; errors from the
// rendering service carry their own codes so a caller can tell a dead feed
// from a dead renderer. Anything else is a plain 500.
func respondProcessorError(w http.ResponseWriter, err error, requestID string) {
	var fetchErr *feed.FetchError
	var parseErr *feed.ParseError
	if errors.As(err, &fetchErr) || errors.As(err, &parseErr) {
		middleware.RespondFeedUnavailable(w, err, requestID)
		return
	}

	var renderErr *shotstack.RenderFailedError
	if errors.As(err, &renderErr) {
		middleware.RespondRenderFailed(w, err, requestID)
		return
	}

	var timeoutErr *shotstack.TimeoutError
	if errors.As(err, &timeoutErr) {
		middleware.RespondRenderTimeout(w, err, requestID)
		return
	}

	middleware.RespondInternalError(w, err, requestID)
}
