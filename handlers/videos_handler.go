package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/feedreel/feed-video-backend/middleware"
	"github.com/feedreel/feed-video-backend/utils"
)

// LocalVideo describes one video file in the public directory
type LocalVideo struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

/*
HandleListLocalVideos lists videos saved in the public directory, newest
first. The directory holds both local FFmpeg renders and mirrored cloud
renders.

Response:
  - 200 OK: Video listing.
*/
func (h *Handler) HandleListLocalVideos(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	entries, err := os.ReadDir(h.PublicDir)
	if err != nil {
		if os.IsNotExist(err) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"count":   0,
				"videos":  []LocalVideo{},
			})
			return
		}
		middleware.RespondInternalError(w, fmt.Errorf("failed to list local videos: %v", err), requestID)
		return
	}

	videos := make([]LocalVideo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		videos = append(videos, LocalVideo{
			Filename:   entry.Name(),
			URL:        "/public/" + filepath.Base(entry.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(videos, func(i, j int) bool {
		return videos[i].ModifiedAt.After(videos[j].ModifiedAt)
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"count":   len(videos),
		"videos":  videos,
	})
}
