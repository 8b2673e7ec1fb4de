package shotstack

import (
	"fmt"
	"time"
)

// SubmissionError indicates the rendering service rejected a render request
type SubmissionError struct {
	StatusCode int
	Message    string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to start render: %s", e.Message)
}

// StatusError indicates a status check could not be completed, either
// because the service was unreachable or because it rejected the render ID
type StatusError struct {
	RenderID string
	Err      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to check status of render %s: %v", e.RenderID, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// RenderFailedError indicates the service reported the render as failed
type RenderFailedError struct {
	RenderID string
	Message  string
}

func (e *RenderFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("render %s failed: unknown error", e.RenderID)
	}
	return fmt.Sprintf("render %s failed: %s", e.RenderID, e.Message)
}

// MissingResultError indicates the service reported done without a result URL
type MissingResultError struct {
	RenderID string
}

func (e *MissingResultError) Error() string {
	return fmt.Sprintf("render %s completed but no result URL is available", e.RenderID)
}

// TimeoutError indicates a render did not reach a terminal status in time
type TimeoutError struct {
	RenderID string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for render %s", e.Timeout, e.RenderID)
}
