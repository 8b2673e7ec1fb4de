package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedreel/feed-video-backend/middleware"
	"github.com/feedreel/feed-video-backend/types"
)

// stubLister returns a fixed tracker listing or error
type stubLister struct {
	jobs []*types.RenderJob
	err  error
}

func (s *stubLister) List(ctx context.Context) ([]*types.RenderJob, error) {
	return s.jobs, s.err
}

func newHealthFixture(t *testing.T, lister StatusLister) *Handler {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	middleware.Logger = logger

	return NewHandler(lister, t.TempDir(), logger)
}

func TestHandleHealthCheck(t *testing.T) {
	handler := newHealthFixture(t, &stubLister{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealthCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "healthy", response.Services["tracker"])
	assert.Equal(t, "healthy", response.Services["public_dir"])
}

func TestHandleHealthCheckTrackerDown(t *testing.T) {
	handler := newHealthFixture(t, &stubLister{err: assert.AnError})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealthCheck(w, req)

	var response HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "unhealthy", response.Status)
	assert.Contains(t, response.Services["tracker"], "unhealthy")
}

func TestHandleLivenessCheck(t *testing.T) {
	handler := newHealthFixture(t, &stubLister{})

	req := httptest.NewRequest("GET", "/health/live", nil)
	w := httptest.NewRecorder()

	handler.HandleLivenessCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "alive", response["status"])
}

func TestHandleReadinessCheck(t *testing.T) {
	handler := newHealthFixture(t, &stubLister{})

	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.HandleReadinessCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ready", response["status"])
}

func TestHandleReadinessCheckNotReady(t *testing.T) {
	handler := newHealthFixture(t, &stubLister{err: assert.AnError})

	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.HandleReadinessCheck(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
