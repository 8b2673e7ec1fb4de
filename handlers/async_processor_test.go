package handlers

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feedreel/feed-video-backend/feed"
)

func newAsyncFixture(workers, queueSize int) (*AsyncProcessor, *MockExtractor, *MockRenderer) {
	mockExtractor := &MockExtractor{}
	mockRenderer := &MockRenderer{}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests

	batch := NewBatchProcessor(mockExtractor, mockRenderer, nil, logger, 0, time.Minute)
	processor := NewAsyncProcessor(workers, queueSize, true, 0.8, time.Second, logger, batch)
	return processor, mockExtractor, mockRenderer
}

func TestAsyncProcessorSubmitJob(t *testing.T) {
	processor, mockExtractor, _ := newAsyncFixture(1, 5)
	defer processor.Stop()

	mockExtractor.On("ExtractFromURL", mock.Anything, mock.Anything, mock.Anything).
		Return([]*feed.Item{}, nil)

	jobID, err := processor.SubmitJob("https://example.com/feed.xml", "tmpl-1", 3, "test-request-123")

	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.Contains(t, jobID, "test-request-123")
}

func TestAsyncProcessorJobStatusLifecycle(t *testing.T) {
	processor, mockExtractor, mockRenderer := newAsyncFixture(1, 5)
	defer processor.Stop()

	items := []*feed.Item{
		{Title: "Story", Link: "https://example.com/1", ImageURL: "https://img.example.com/1.jpg"},
	}
	mockExtractor.On("ExtractFromURL", mock.Anything, mock.Anything, mock.Anything).
		Return(items, nil)
	mockRenderer.On("CreateStoryVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://cdn.example.com/video.mp4", nil)

	jobID, err := processor.SubmitJob("https://example.com/feed.xml", "tmpl-1", 1, "req-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, exists := processor.GetJobStatus(jobID)
		return exists && status.Status == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	status, _ := processor.GetJobStatus(jobID)
	require.NotNil(t, status.Summary)
	assert.Equal(t, 1, status.Summary.Total)
	assert.Equal(t, 1, status.Summary.Success)
	assert.NotNil(t, status.CompletedAt)
}

func TestAsyncProcessorFailedJob(t *testing.T) {
	processor, mockExtractor, _ := newAsyncFixture(1, 5)
	defer processor.Stop()

	mockExtractor.On("ExtractFromURL", mock.Anything, mock.Anything, mock.Anything).
		Return(([]*feed.Item)(nil), &feed.FetchError{URL: "https://example.com/feed.xml"})

	jobID, err := processor.SubmitJob("https://example.com/feed.xml", "tmpl-1", 1, "req-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, exists := processor.GetJobStatus(jobID)
		return exists && status.Status == "failed"
	}, 5*time.Second, 10*time.Millisecond)

	status, _ := processor.GetJobStatus(jobID)
	assert.NotEmpty(t, status.Error)
}

func TestAsyncProcessorGetJobStatusNotFound(t *testing.T) {
	processor, _, _ := newAsyncFixture(1, 5)
	defer processor.Stop()

	status, exists := processor.GetJobStatus("non-existent-job")
	assert.False(t, exists)
	assert.Nil(t, status)
}

func TestAsyncProcessorBackpressure(t *testing.T) {
	mockExtractor := &MockExtractor{}
	mockRenderer := &MockRenderer{}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	batch := NewBatchProcessor(mockExtractor, mockRenderer, nil, logger, 0, time.Minute)

	// No workers, so every submission stays queued
	processor := NewAsyncProcessor(0, 4, true, 0.5, 100*time.Millisecond, logger, batch)
	defer processor.Stop()

	// Fill the queue up to the rejection threshold
	_, err := processor.SubmitJob("https://example.com/feed.xml", "tmpl-1", 1, "req-1")
	require.NoError(t, err)
	_, err = processor.SubmitJob("https://example.com/feed.xml", "tmpl-1", 1, "req-2")
	require.NoError(t, err)

	// Load is now 2/4 = 0.5, at the threshold
	_, err = processor.SubmitJob("https://example.com/feed.xml", "tmpl-1", 1, "req-3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backpressure")
}

func TestAsyncProcessorStop(t *testing.T) {
	processor, mockExtractor, _ := newAsyncFixture(1, 5)

	mockExtractor.On("ExtractFromURL", mock.Anything, mock.Anything, mock.Anything).
		Return([]*feed.Item{}, nil)

	jobID, err := processor.SubmitJob("https://example.com/feed.xml", "tmpl-1", 1, "req-1")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		processor.Stop()
	})

	// Job status stays readable after shutdown
	status, exists := processor.GetJobStatus(jobID)
	assert.True(t, exists)
	assert.NotNil(t, status)
}
