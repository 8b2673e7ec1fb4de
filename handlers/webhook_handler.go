package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/middleware"
	"github.com/feedreel/feed-video-backend/monitoring"
	"github.com/feedreel/feed-video-backend/types"
	"github.com/feedreel/feed-video-backend/utils"
)

// webhookPayload is the notification body sent by the rendering service
type webhookPayload struct {
	ID     string      `json:"id"`
	Owner  string      `json:"owner"`
	Status string      `json:"status"`
	URL    string      `json:"url"`
	Error  string      `json:"error"`
	Data   interface{} `json:"data"`
}

/*
HandleRenderWebhook receives render status notifications from the rendering
service and merges them into the status tracker. Notifications may arrive
out of order or repeat; the tracker's merge rules absorb both. A done
notification with a URL also triggers a background download of the video.

Response:
  - 200 OK: Notification merged.
  - 400 Bad Request: Missing render ID.
*/
func (h *Handler) HandleRenderWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		middleware.RespondBadRequest(w, fmt.Errorf("invalid webhook body: %v", err), requestID)
		return
	}

	if payload.ID == "" {
		middleware.RespondBadRequest(w, fmt.Errorf("missing render ID in webhook"), requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"render_id":  payload.ID,
		"status":     payload.Status,
	}).Info("Render webhook received")

	update := types.StatusUpdate{
		Status: types.ParseRenderStatus(payload.Status),
		URL:    payload.URL,
		Error:  payload.Error,
		Metadata: map[string]interface{}{
			"webhook_received": true,
		},
	}
	if payload.Owner != "" {
		update.Metadata["owner"] = payload.Owner
	}
	if payload.Data != nil {
		update.Metadata["data"] = payload.Data
	}

	job, err := h.Tracker.Merge(r.Context(), payload.ID, update)
	if err != nil {
		monitoring.RecordTrackerOperation("merge", "failed")
		middleware.RespondInternalError(w, fmt.Errorf("failed to record render status: %v", err), requestID)
		return
	}
	monitoring.RecordTrackerOperation("merge", "success")
	monitoring.RecordWebhookNotification(string(update.Status))

	if job.Status == types.StatusDone && job.URL != "" && h.Mirror != nil {
		h.Mirror.DownloadAsync(job.ID, job.URL)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"message":  "Webhook processed successfully",
		"renderId": job.ID,
		"status":   job.Status,
	})
}
