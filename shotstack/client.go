/*
Package shotstack is the client for the cloud rendering API. It submits
template renders, polls render status, and drives a render to completion.

Status observations flow through an optional StatusRecorder so polling and
webhook notifications converge on one record per render.
*/
package shotstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/monitoring"
	"github.com/feedreel/feed-video-backend/types"
)

const (
	// DefaultBaseURL is the production endpoint of the rendering API
	DefaultBaseURL = "https://api.shotstack.io/edit/v1"

	// DefaultPollInterval is the delay between status checks while waiting
	DefaultPollInterval = 5 * time.Second

	// DefaultWaitTimeout bounds how long a render may take before giving up
	DefaultWaitTimeout = 5 * time.Minute
)

// MergeField is a single template placeholder substitution
type MergeField struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// RenderRequest describes a template render submission
type RenderRequest struct {
	TemplateID string
	Merge      []MergeField
}

// RenderState is one observation of a render's progress
type RenderState struct {
	ID     string
	Status types.RenderStatus
	URL    string
	Error  string
}

// StatusRecorder receives every status observation the client makes and
// answers short-circuit lookups during waits. Both methods are optional
// conveniences; a nil recorder disables them.
type StatusRecorder interface {
	Record(ctx context.Context, renderID string, update types.StatusUpdate) (*types.RenderJob, error)
	Lookup(ctx context.Context, renderID string) (*types.RenderJob, error)
}

// renderEnvelope is the wire shape of the API's render responses
type renderEnvelope struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		URL    string `json:"url,omitempty"`
		Error  string `json:"error,omitempty"`
	} `json:"response"`
}

// Client talks to the rendering API
type Client struct {
	apiKey     string
	baseURL    string
	webhookURL string

	httpClient   *http.Client
	pollInterval time.Duration
	recorder     StatusRecorder
	logger       *logrus.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a render API client. webhookURL may be empty, in which
// case submissions carry no webhook and status arrives by polling only.
func NewClient(apiKey, baseURL, webhookURL string, httpClient *http.Client, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		webhookURL:   webhookURL,
		httpClient:   httpClient,
		pollInterval: DefaultPollInterval,
		logger:       logger,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// SetRecorder attaches a status recorder; pass nil to detach
func (c *Client) SetRecorder(r StatusRecorder) { c.recorder = r }

// SetPollInterval overrides the delay between status checks
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// Submit starts a template render and returns the render ID assigned by the
// service. The initial status observation is forwarded to the recorder.
func (c *Client) Submit(ctx context.Context, req RenderRequest) (string, error) {
	payload := map[string]interface{}{
		"id":    req.TemplateID,
		"merge": req.Merge,
	}
	if c.webhookURL != "" {
		payload["webhook"] = c.webhookURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/templates/render", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		monitoring.RecordRenderSubmission("error")
		return "", &SubmissionError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		monitoring.RecordRenderSubmission("error")
		return "", &SubmissionError{
			StatusCode: resp.StatusCode,
			Message:    readErrorBody(resp.Body, resp.Status),
		}
	}

	var envelope renderEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		monitoring.RecordRenderSubmission("error")
		return "", &SubmissionError{StatusCode: resp.StatusCode, Message: "invalid response body"}
	}
	if !envelope.Success {
		monitoring.RecordRenderSubmission("error")
		return "", &SubmissionError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	renderID := envelope.Response.ID
	if renderID == "" {
		monitoring.RecordRenderSubmission("error")
		return "", &SubmissionError{StatusCode: resp.StatusCode, Message: "response missing render id"}
	}
	monitoring.RecordRenderSubmission("success")

	c.logger.WithFields(logrus.Fields{
		"render_id":   renderID,
		"template_id": req.TemplateID,
	}).Info("Render submitted")

	c.record(ctx, renderID, types.StatusUpdate{
		Status: types.ParseRenderStatus(envelope.Response.Status),
		Metadata: map[string]interface{}{
			"template_id": req.TemplateID,
		},
	})

	return renderID, nil
}

// FetchStatus retrieves the current status of a render. Statuses the client
// does not recognize are normalized to unknown rather than failing the check.
func (c *Client) FetchStatus(ctx context.Context, renderID string) (*RenderState, error) {
	monitoring.RecordRenderPoll()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/render/"+renderID, nil)
	if err != nil {
		return nil, &StatusError{RenderID: renderID, Err: err}
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &StatusError{RenderID: renderID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			RenderID: renderID,
			Err:      fmt.Errorf("unexpected response: %s", readErrorBody(resp.Body, resp.Status)),
		}
	}

	var envelope renderEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &StatusError{RenderID: renderID, Err: fmt.Errorf("invalid response body: %w", err)}
	}

	state := &RenderState{
		ID:     renderID,
		Status: types.ParseRenderStatus(envelope.Response.Status),
		URL:    envelope.Response.URL,
		Error:  envelope.Response.Error,
	}

	c.record(ctx, renderID, types.StatusUpdate{
		Status: state.Status,
		URL:    state.URL,
		Error:  state.Error,
	})

	return state, nil
}

// WaitUntilTerminal polls until the render reaches done or failed, returning
// the video URL on success. Before each poll it consults the recorder, so a
// webhook notification that already marked the render terminal ends the wait
// without another API call. A zero timeout uses DefaultWaitTimeout.
func (c *Client) WaitUntilTerminal(ctx context.Context, renderID string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	start := c.now()
	deadline := start.Add(timeout)

	finish := func(outcome string, url string, err error) (string, error) {
		monitoring.RecordRenderWait(outcome, c.now().Sub(start).Seconds())
		return url, err
	}

	for {
		if !c.now().Before(deadline) {
			return finish("timeout", "", &TimeoutError{RenderID: renderID, Timeout: timeout})
		}

		if url, done, err := c.lookupTerminal(ctx, renderID); done {
			if err != nil {
				return finish("failed", "", err)
			}
			return finish("done", url, nil)
		}

		state, err := c.FetchStatus(ctx, renderID)
		if err != nil {
			return finish("error", "", err)
		}

		c.logger.WithFields(logrus.Fields{
			"render_id": renderID,
			"status":    state.Status,
		}).Info("Render status")

		switch state.Status {
		case types.StatusDone:
			if state.URL == "" {
				return finish("failed", "", &MissingResultError{RenderID: renderID})
			}
			return finish("done", state.URL, nil)
		case types.StatusFailed:
			return finish("failed", "", &RenderFailedError{RenderID: renderID, Message: state.Error})
		}

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return finish("error", "", err)
		}
	}
}

// CreateStoryVideo renders a headline-and-image story through templateID and
// blocks until the video URL is available
func (c *Client) CreateStoryVideo(ctx context.Context, templateID, title, imageURL string, timeout time.Duration) (string, error) {
	renderID, err := c.Submit(ctx, RenderRequest{
		TemplateID: templateID,
		Merge: []MergeField{
			{Find: "headline1", Replace: title},
			{Find: "IMAGE_1", Replace: imageURL},
		},
	})
	if err != nil {
		return "", err
	}
	return c.WaitUntilTerminal(ctx, renderID, timeout)
}

// ListRenders returns the service's raw render listing for the account
func (c *Client) ListRenders(ctx context.Context) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/render", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to list renders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to list renders: %s", readErrorBody(resp.Body, resp.Status))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read render listing: %w", err)
	}
	return json.RawMessage(raw), nil
}

// lookupTerminal checks the recorder for an already-terminal record. The
// second return is true when the wait can end without polling the API.
func (c *Client) lookupTerminal(ctx context.Context, renderID string) (string, bool, error) {
	if c.recorder == nil {
		return "", false, nil
	}

	job, err := c.recorder.Lookup(ctx, renderID)
	if err != nil {
		return "", false, nil
	}

	switch job.Status {
	case types.StatusDone:
		if job.URL == "" {
			return "", true, &MissingResultError{RenderID: renderID}
		}
		return job.URL, true, nil
	case types.StatusFailed:
		return "", true, &RenderFailedError{RenderID: renderID, Message: job.Error}
	}
	return "", false, nil
}

// record forwards an observation to the recorder, logging failures instead
// of surfacing them; tracking is advisory and never fails an API call
func (c *Client) record(ctx context.Context, renderID string, update types.StatusUpdate) {
	if c.recorder == nil || renderID == "" {
		return
	}
	if _, err := c.recorder.Record(ctx, renderID, update); err != nil {
		c.logger.WithFields(logrus.Fields{
			"render_id": renderID,
			"error":     err.Error(),
		}).Warn("Failed to record render status")
	}
}

func readErrorBody(r io.Reader, fallback string) string {
	body, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return fallback
	}
	return string(bytes.TrimSpace(body))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
