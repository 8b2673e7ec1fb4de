package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/middleware"
	"github.com/feedreel/feed-video-backend/monitoring"
	"github.com/feedreel/feed-video-backend/render"
	"github.com/feedreel/feed-video-backend/types"
	"github.com/feedreel/feed-video-backend/utils"
)

/*
HandleProcessFFmpeg processes a feed into videos rendered on the local
machine with FFmpeg instead of the cloud API.

Request body:

	{"url": "https://example.com/feed.xml", "maxItems": 1}

Response:
  - 200 OK: Per-item report with local video paths.
  - 400 Bad Request: Missing or invalid url.
  - 500 Internal Server Error: The feed could not be fetched or parsed.
*/
func (h *Handler) HandleProcessFFmpeg(w http.ResponseWriter, r *http.Request) {
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

	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = 1
	}
	if maxItems > h.MaxItemsPerFeed {
		maxItems = h.MaxItemsPerFeed
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"feed_url":   feedURL,
		"max_items":  maxItems,
	}).Info("Processing feed with local renderer")

	items, err := h.Extractor.ExtractFromURL(r.Context(), feedURL, maxItems)
	if err != nil {
		respondProcessorError(w, err, requestID)
		return
	}

	results := make([]types.BatchItemResult, 0, len(items))
	for _, item := range items {
		result := types.BatchItemResult{
			Title:    item.Title,
			Link:     item.Link,
			ImageURL: item.ImageURL,
		}

		videoPath, err := h.LocalRenderer.CreateStoryVideo(r.Context(), item.Title, item.ImageURL, render.DefaultTextOptions())
		if err != nil {
			result.Status = "error"
			result.Error = err.Error()
			monitoring.RecordLocalRender("failed")

			h.Logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"title":      item.Title,
				"error":      err.Error(),
			}).Error("Local render failed")
		} else {
			result.Status = "success"
			result.VideoURL = videoPath
			monitoring.RecordLocalRender("success")
		}

		results = append(results, result)
	}

	success := 0
	for _, r := range results {
		if r.Status == "success" {
			success++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"summary": types.BatchSummary{
			Total:   len(results),
			Success: success,
			Errors:  len(results) - success,
		},
		"videos": results,
	})
}
