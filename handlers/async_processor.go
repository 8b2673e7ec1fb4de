package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/monitoring"
	"github.com/feedreel/feed-video-backend/types"
)

// BatchJob represents a background feed-to-video batch run
type BatchJob struct {
	ID         string
	FeedURL    string
	TemplateID string
	MaxItems   int
	RequestID  string
	CreatedAt  time.Time
}

// BatchJobResult represents the result of a background batch run
type BatchJobResult struct {
	JobID       string
	FeedURL     string
	Result      *types.BatchResult
	Error       error
	ProcessedAt time.Time
	Duration    time.Duration
}

// AsyncProcessor runs feed batches in the background. Batch runs are
// long-lived since each item blocks on a cloud render, so the queue applies
// backpressure well before it is full.
type AsyncProcessor struct {
	jobs      chan BatchJob
	results   chan BatchJobResult
	quit      chan bool
	workersWg sync.WaitGroup
	resultsWg sync.WaitGroup
	jobStatus map[string]*types.AsyncBatchStatus
	mu        sync.RWMutex
	logger    *logrus.Logger
	batch     *BatchProcessor

	backpressureEnabled bool
	rejectThreshold     float64
	waitTimeout         time.Duration
	queueSize           int
}

// NewAsyncProcessor creates an async processor with the given worker pool
func NewAsyncProcessor(workers, queueSize int, backpressureEnabled bool, rejectThreshold float64, waitTimeout time.Duration, logger *logrus.Logger, batch *BatchProcessor) *AsyncProcessor {
	processor := &AsyncProcessor{
		jobs:                make(chan BatchJob, queueSize),
		results:             make(chan BatchJobResult, queueSize),
		quit:                make(chan bool),
		jobStatus:           make(map[string]*types.AsyncBatchStatus),
		logger:              logger,
		batch:               batch,
		backpressureEnabled: backpressureEnabled,
		rejectThreshold:     rejectThreshold,
		waitTimeout:         waitTimeout,
		queueSize:           queueSize,
	}

	monitoring.UpdateActiveWorkers(workers)

	for i := 0; i < workers; i++ {
		processor.workersWg.Add(1)
		go processor.worker(i)
	}

	processor.resultsWg.Add(1)
	go processor.resultProcessor()

	go processor.cleanupOldJobs()

	return processor
}

// SubmitJob queues a batch run with backpressure and returns its job ID
func (ap *AsyncProcessor) SubmitJob(feedURL, templateID string, maxItems int, requestID string) (string, error) {
	jobID := fmt.Sprintf("job_%d_%s", time.Now().UnixNano(), requestID)

	job := BatchJob{
		ID:         jobID,
		FeedURL:    feedURL,
		TemplateID: templateID,
		MaxItems:   maxItems,
		RequestID:  requestID,
		CreatedAt:  time.Now(),
	}

	ap.mu.Lock()
	ap.jobStatus[jobID] = &types.AsyncBatchStatus{
		JobID:      jobID,
		FeedURL:    feedURL,
		TemplateID: templateID,
		Status:     "pending",
		CreatedAt:  job.CreatedAt,
	}
	ap.mu.Unlock()

	if ap.backpressureEnabled {
		currentLoad := float64(len(ap.jobs)) / float64(ap.queueSize)
		if currentLoad >= ap.rejectThreshold {
			ap.logger.WithFields(logrus.Fields{
				"feed_url":         feedURL,
				"current_load":     fmt.Sprintf("%.2f", currentLoad),
				"reject_threshold": fmt.Sprintf("%.2f", ap.rejectThreshold),
				"queue_size":       len(ap.jobs),
				"max_queue_size":   ap.queueSize,
			}).Warn("Rejecting job due to backpressure - queue near capacity")
			return "", fmt.Errorf("batch processor queue under backpressure (load: %.2f%%)", currentLoad*100)
		}
	}

	select {
	case ap.jobs <- job:
		monitoring.UpdateBatchQueueSize(len(ap.jobs))

		ap.logger.WithFields(logrus.Fields{
			"job_id":     jobID,
			"feed_url":   feedURL,
			"request_id": requestID,
		}).Info("Batch job submitted for background processing")
		return jobID, nil
	case <-time.After(ap.waitTimeout):
		ap.logger.WithFields(logrus.Fields{
			"feed_url":       feedURL,
			"wait_timeout":   ap.waitTimeout.String(),
			"queue_size":     len(ap.jobs),
			"max_queue_size": ap.queueSize,
		}).Warn("Batch job submission timed out due to queue pressure")
		return "", fmt.Errorf("batch processor queue timeout after %v", ap.waitTimeout)
	}
}

// GetJobStatus retrieves the status of a job
func (ap *AsyncProcessor) GetJobStatus(jobID string) (*types.AsyncBatchStatus, bool) {
	ap.mu.RLock()
	defer ap.mu.RUnlock()

	status, exists := ap.jobStatus[jobID]
	return status, exists
}

// worker processes jobs in the background
func (ap *AsyncProcessor) worker(workerID int) {
	defer ap.workersWg.Done()

	ap.logger.WithField("worker_id", workerID).Info("Batch worker started")

	for {
		select {
		case job := <-ap.jobs:
			monitoring.UpdateBatchQueueSize(len(ap.jobs))
			ap.processJob(workerID, job)
		case <-ap.quit:
			ap.logger.WithField("worker_id", workerID).Info("Batch worker stopping")
			return
		}
	}
}

// processJob runs a single batch job
func (ap *AsyncProcessor) processJob(workerID int, job BatchJob) {
	startTime := time.Now()

	ap.markProcessing(job.ID)

	ap.logger.WithFields(logrus.Fields{
		"worker_id":  workerID,
		"job_id":     job.ID,
		"feed_url":   job.FeedURL,
		"request_id": job.RequestID,
	}).Info("Processing batch job")

	result, err := ap.batch.Run(context.Background(), job.FeedURL, job.TemplateID, job.MaxItems)

	status := "completed"
	if err != nil {
		status = "failed"
	}
	monitoring.RecordBatchJob(status, time.Since(startTime).Seconds())

	ap.results <- BatchJobResult{
		JobID:       job.ID,
		FeedURL:     job.FeedURL,
		Result:      result,
		Error:       err,
		ProcessedAt: time.Now(),
		Duration:    time.Since(startTime),
	}
}

// resultProcessor applies job results to the status map
func (ap *AsyncProcessor) resultProcessor() {
	defer ap.resultsWg.Done()

	for result := range ap.results {
		status := "completed"
		errorMsg := ""
		var summary *types.BatchSummary

		if result.Error != nil {
			status = "failed"
			errorMsg = result.Error.Error()
		} else if result.Result != nil {
			s := result.Result.Summary
			summary = &s
		}

		ap.finishJob(result.JobID, status, errorMsg, summary, result.Duration.Milliseconds())

		ap.logger.WithFields(logrus.Fields{
			"job_id":      result.JobID,
			"feed_url":    result.FeedURL,
			"status":      status,
			"duration_ms": result.Duration.Milliseconds(),
		}).Info("Batch job result processed")
	}
}

func (ap *AsyncProcessor) markProcessing(jobID string) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if status, exists := ap.jobStatus[jobID]; exists {
		status.Status = "processing"
	}
}

func (ap *AsyncProcessor) finishJob(jobID, status, errorMsg string, summary *types.BatchSummary, durationMs int64) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if jobStatus, exists := ap.jobStatus[jobID]; exists {
		jobStatus.Status = status
		jobStatus.Error = errorMsg
		jobStatus.Summary = summary
		jobStatus.DurationMs = durationMs
		now := time.Now()
		jobStatus.CompletedAt = &now
	}
}

// cleanupOldJobs removes day-old job statuses
func (ap *AsyncProcessor) cleanupOldJobs() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		ap.mu.Lock()
		cutoff := time.Now().Add(-24 * time.Hour)
		removed := 0

		for jobID, jobStatus := range ap.jobStatus {
			if jobStatus.CreatedAt.Before(cutoff) {
				delete(ap.jobStatus, jobID)
				removed++
			}
		}

		ap.mu.Unlock()

		if removed > 0 {
			ap.logger.WithField("removed_count", removed).Info("Cleaned up old batch job statuses")
		}
	}
}

// Stop gracefully shuts down the async processor. Workers drain first so no
// result is sent on a closed channel.
func (ap *AsyncProcessor) Stop() {
	ap.logger.Info("Stopping batch processor")
	close(ap.quit)
	ap.workersWg.Wait()
	close(ap.results)
	ap.resultsWg.Wait()
	ap.logger.Info("Batch processor stopped")
}
