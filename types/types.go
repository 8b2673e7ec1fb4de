// Package types contains shared types used across the feed-to-video backend
package types

import (
	"time"
)

// RenderStatus is the lifecycle status of a remote render job
type RenderStatus string

const (
	StatusQueued    RenderStatus = "queued"
	StatusFetching  RenderStatus = "fetching"
	StatusRendering RenderStatus = "rendering"
	StatusSaving    RenderStatus = "saving"
	StatusDone      RenderStatus = "done"
	StatusFailed    RenderStatus = "failed"
	StatusUnknown   RenderStatus = "unknown"
)

// ParseRenderStatus normalizes a raw status string from the rendering
// service. Values outside the declared enum map to StatusUnknown.
func ParseRenderStatus(s string) RenderStatus {
	switch RenderStatus(s) {
	case StatusQueued, StatusFetching, StatusRendering, StatusSaving, StatusDone, StatusFailed:
		return RenderStatus(s)
	default:
		return StatusUnknown
	}
}

// Rank orders statuses along the forward-only lifecycle
// queued -> fetching -> rendering -> saving -> done/failed.
// StatusUnknown ranks below everything so any real observation replaces it.
func (s RenderStatus) Rank() int {
	switch s {
	case StatusQueued:
		return 1
	case StatusFetching:
		return 2
	case StatusRendering:
		return 3
	case StatusSaving:
		return 4
	case StatusDone, StatusFailed:
		return 5
	default:
		return 0
	}
}

// IsTerminal reports whether no further status transition is accepted
func (s RenderStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// RenderJob is the tracked record of one remote render job
type RenderJob struct {
	ID        string                 `json:"id"`
	Status    RenderStatus           `json:"status"`
	URL       string                 `json:"url,omitempty"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy so callers never share the tracker's record
func (j *RenderJob) Clone() *RenderJob {
	if j == nil {
		return nil
	}
	out := *j
	if j.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(j.Metadata))
		for k, v := range j.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// StatusUpdate is a partial observation of a render job. Empty fields mean
// "unchanged"; only present fields participate in a merge.
type StatusUpdate struct {
	Status   RenderStatus           `json:"status,omitempty"`
	URL      string                 `json:"url,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// BatchItemResult is the outcome for one feed item in a batch run
type BatchItemResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	ImageURL string `json:"imageUrl"`
	VideoURL string `json:"videoUrl"`
	Status   string `json:"status"` // success or error
	Error    string `json:"error,omitempty"`
}

// BatchSummary aggregates per-item outcomes of a batch run
type BatchSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Errors  int `json:"errors"`
}

// BatchResult is the ordered report produced from one feed-processing request
type BatchResult struct {
	Summary BatchSummary      `json:"summary"`
	Videos  []BatchItemResult `json:"videos"`
}

// AsyncBatchStatus represents the status of a background batch job
type AsyncBatchStatus struct {
	JobID       string        `json:"job_id"`
	FeedURL     string        `json:"feed_url"`
	TemplateID  string        `json:"template_id,omitempty"`
	Status      string        `json:"status"` // pending, processing, completed, failed
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
	Summary     *BatchSummary `json:"summary,omitempty"`
	DurationMs  int64         `json:"duration_ms,omitempty"`
}
