package shotstack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedreel/feed-video-backend/tracker"
	"github.com/feedreel/feed-video-backend/types"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

// fakeRecorder captures status observations in memory
type fakeRecorder struct {
	mu   sync.Mutex
	jobs map[string]*types.RenderJob
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{jobs: make(map[string]*types.RenderJob)}
}

func (r *fakeRecorder) Record(ctx context.Context, renderID string, update types.StatusUpdate) (*types.RenderJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[renderID]
	if !exists {
		job = &types.RenderJob{ID: renderID}
		r.jobs[renderID] = job
	}
	if update.Status != "" {
		job.Status = update.Status
	}
	if update.URL != "" {
		job.URL = update.URL
	}
	if update.Error != "" {
		job.Error = update.Error
	}
	return job.Clone(), nil
}

func (r *fakeRecorder) Lookup(ctx context.Context, renderID string) (*types.RenderJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[renderID]
	if !exists {
		return nil, tracker.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *fakeRecorder) set(renderID string, job *types.RenderJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[renderID] = job
}

func renderResponse(id, status, url, errMsg string) map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"message": "OK",
		"response": map[string]interface{}{
			"id":     id,
			"status": status,
			"url":    url,
			"error":  errMsg,
		},
	}
}

func TestSubmitSuccess(t *testing.T) {
	var captured map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/templates/render", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(renderResponse("render-1", "queued", "", ""))
	}))
	defer server.Close()

	recorder := newFakeRecorder()
	client := NewClient("test-key", server.URL, "https://app.example.com/webhook/shotstack", server.Client(), newTestLogger())
	client.SetRecorder(recorder)

	renderID, err := client.Submit(context.Background(), RenderRequest{
		TemplateID: "tmpl-1",
		Merge: []MergeField{
			{Find: "headline1", Replace: "Breaking news"},
			{Find: "IMAGE_1", Replace: "https://example.com/img.jpg"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "render-1", renderID)

	assert.Equal(t, "tmpl-1", captured["id"])
	assert.Equal(t, "https://app.example.com/webhook/shotstack", captured["webhook"])
	merge, ok := captured["merge"].([]interface{})
	require.True(t, ok)
	assert.Len(t, merge, 2)

	job, err := recorder.Lookup(context.Background(), "render-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, job.Status)
}

func TestSubmitOmitsWebhookWhenUnset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotContains(t, payload, "webhook")

		json.NewEncoder(w).Encode(renderResponse("render-1", "queued", "", ""))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())

	_, err := client.Submit(context.Background(), RenderRequest{TemplateID: "tmpl-1"})
	require.NoError(t, err)
}

func TestSubmitServiceReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "template not found",
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())

	_, err := client.Submit(context.Background(), RenderRequest{TemplateID: "missing"})
	require.Error(t, err)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Contains(t, subErr.Error(), "template not found")
}

func TestSubmitMissingRenderID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(renderResponse("", "queued", "", ""))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())

	renderID, err := client.Submit(context.Background(), RenderRequest{TemplateID: "tmpl-1"})
	assert.Empty(t, renderID)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Contains(t, subErr.Error(), "missing render id")
}

func TestSubmitHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("bad-key", server.URL, "", server.Client(), newTestLogger())

	_, err := client.Submit(context.Background(), RenderRequest{TemplateID: "tmpl-1"})

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, http.StatusUnauthorized, subErr.StatusCode)
}

func TestFetchStatusNormalizesUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/render/render-1", r.URL.Path)
		json.NewEncoder(w).Encode(renderResponse("render-1", "transcoding", "", ""))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())

	state, err := client.FetchStatus(context.Background(), "render-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnknown, state.Status)
}

func TestWaitUntilTerminalDone(t *testing.T) {
	statuses := []string{"queued", "rendering", "done"}
	call := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := statuses[call]
		call++
		url := ""
		if status == "done" {
			url = "https://cdn.example.com/render-1.mp4"
		}
		json.NewEncoder(w).Encode(renderResponse("render-1", status, url, ""))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	url, err := client.WaitUntilTerminal(context.Background(), "render-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/render-1.mp4", url)
	assert.Equal(t, 3, call)
}

func TestWaitUntilTerminalDoneWithoutURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(renderResponse("render-1", "done", "", ""))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := client.WaitUntilTerminal(context.Background(), "render-1", time.Minute)

	var missingErr *MissingResultError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "render-1", missingErr.RenderID)
}

func TestWaitUntilTerminalFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(renderResponse("render-1", "failed", "", "encoder crashed"))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := client.WaitUntilTerminal(context.Background(), "render-1", time.Minute)

	var failedErr *RenderFailedError
	require.ErrorAs(t, err, &failedErr)
	assert.Contains(t, failedErr.Error(), "encoder crashed")
}

func TestWaitUntilTerminalTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(renderResponse("render-1", "rendering", "", ""))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())

	// Each simulated sleep advances the clock past the poll interval
	current := time.Now()
	client.now = func() time.Time { return current }
	client.sleep = func(ctx context.Context, d time.Duration) error {
		current = current.Add(d)
		return nil
	}

	_, err := client.WaitUntilTerminal(context.Background(), "render-1", 12*time.Second)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 12*time.Second, timeoutErr.Timeout)
}

func TestWaitUntilTerminalRecorderShortCircuit(t *testing.T) {
	polled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polled = true
		json.NewEncoder(w).Encode(renderResponse("render-1", "rendering", "", ""))
	}))
	defer server.Close()

	recorder := newFakeRecorder()
	recorder.set("render-1", &types.RenderJob{
		ID:     "render-1",
		Status: types.StatusDone,
		URL:    "https://cdn.example.com/render-1.mp4",
	})

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())
	client.SetRecorder(recorder)
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	// A webhook already marked the render done; the wait must not poll
	url, err := client.WaitUntilTerminal(context.Background(), "render-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/render-1.mp4", url)
	assert.False(t, polled)
}

func TestCreateStoryVideo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/templates/render":
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			merge := payload["merge"].([]interface{})
			first := merge[0].(map[string]interface{})
			second := merge[1].(map[string]interface{})
			assert.Equal(t, "headline1", first["find"])
			assert.Equal(t, "Big story", first["replace"])
			assert.Equal(t, "IMAGE_1", second["find"])
			assert.Equal(t, "https://example.com/img.jpg", second["replace"])

			json.NewEncoder(w).Encode(renderResponse("render-1", "queued", "", ""))
		case r.Method == http.MethodGet && r.URL.Path == "/render/render-1":
			json.NewEncoder(w).Encode(renderResponse("render-1", "done", "https://cdn.example.com/render-1.mp4", ""))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	url, err := client.CreateStoryVideo(context.Background(), "tmpl-1", "Big story", "https://example.com/img.jpg", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/render-1.mp4", url)
}

func TestListRenders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/render", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  true,
			"response": []interface{}{map[string]interface{}{"id": "render-1"}},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "", server.Client(), newTestLogger())

	raw, err := client.ListRenders(context.Background())
	require.NoError(t, err)

	var listing map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &listing))
	assert.Equal(t, true, listing["success"])
}
