// Package monitoring provides metrics and observability for the feed video backend
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed fetching metrics
	feedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_feed_fetch_total",
			Help: "Total number of feed fetch attempts",
		},
		[]string{"url", "status"},
	)

	feedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedvideo_feed_fetch_duration_seconds",
			Help:    "Duration of feed fetch operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"url", "status"},
	)

	feedItemsCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedvideo_feed_items_count",
			Help:    "Number of items extracted from feeds",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"url"},
	)

	// Render metrics
	renderSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_render_submissions_total",
			Help: "Total number of render submissions to the cloud API",
		},
		[]string{"status"},
	)

	renderPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedvideo_render_polls_total",
			Help: "Total number of render status polls",
		},
	)

	renderWaitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_render_waits_total",
			Help: "Render waits by outcome",
		},
		[]string{"outcome"},
	)

	renderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedvideo_render_duration_seconds",
			Help:    "Time from submission until a render reached a terminal status",
			Buckets: []float64{5, 15, 30, 60, 120, 180, 300, 600},
		},
	)

	localRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_local_renders_total",
			Help: "Total number of local FFmpeg renders",
		},
		[]string{"status"},
	)

	// Webhook metrics
	webhookNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_webhook_notifications_total",
			Help: "Total number of render webhook notifications received",
		},
		[]string{"status"},
	)

	// Batch processing metrics
	batchJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_batch_jobs_total",
			Help: "Total number of batch feed jobs processed",
		},
		[]string{"status"},
	)

	batchJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedvideo_batch_job_duration_seconds",
			Help:    "Duration of batch feed job processing",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"status"},
	)

	batchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_batch_items_total",
			Help: "Batch items by per-item outcome",
		},
		[]string{"status"},
	)

	batchQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedvideo_batch_queue_size",
			Help: "Current size of the batch job queue",
		},
	)

	// Cache metrics
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"operation"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"operation"},
	)

	// Tracker store metrics
	trackerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_tracker_operations_total",
			Help: "Total number of render tracker store operations",
		},
		[]string{"operation", "status"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedvideo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedvideo_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// System metrics
	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedvideo_active_workers",
			Help: "Number of active batch workers",
		},
	)
)

// RecordFeedFetch records metrics for feed fetching
func RecordFeedFetch(url, status string, duration float64, itemsCount int) {
	feedFetchTotal.WithLabelValues(url, status).Inc()
	feedFetchDuration.WithLabelValues(url, status).Observe(duration)
	if itemsCount >= 0 {
		feedItemsCount.WithLabelValues(url).Observe(float64(itemsCount))
	}
}

// RecordRenderSubmission records a render submission attempt
func RecordRenderSubmission(status string) {
	renderSubmissionsTotal.WithLabelValues(status).Inc()
}

// RecordRenderPoll records one render status poll
func RecordRenderPoll() {
	renderPollsTotal.Inc()
}

// RecordRenderWait records the outcome and duration of a render wait
func RecordRenderWait(outcome string, duration float64) {
	renderWaitsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		renderDuration.Observe(duration)
	}
}

// RecordLocalRender records a local FFmpeg render
func RecordLocalRender(status string) {
	localRendersTotal.WithLabelValues(status).Inc()
}

// RecordWebhookNotification records a received render webhook notification
func RecordWebhookNotification(status string) {
	webhookNotificationsTotal.WithLabelValues(status).Inc()
}

// RecordBatchJob records metrics for batch job processing
func RecordBatchJob(status string, duration float64) {
	batchJobsTotal.WithLabelValues(status).Inc()
	batchJobDuration.WithLabelValues(status).Observe(duration)
}

// RecordBatchItem records the outcome of one batch item
func RecordBatchItem(status string) {
	batchItemsTotal.WithLabelValues(status).Inc()
}

// UpdateBatchQueueSize updates the batch queue size gauge
func UpdateBatchQueueSize(size int) {
	batchQueueSize.Set(float64(size))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(operation string) {
	cacheHits.WithLabelValues(operation).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(operation string) {
	cacheMisses.WithLabelValues(operation).Inc()
}

// RecordTrackerOperation records a tracker store operation
func RecordTrackerOperation(operation, status string) {
	trackerOperations.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
}

// UpdateActiveWorkers updates the active workers gauge
func UpdateActiveWorkers(count int) {
	activeWorkers.Set(float64(count))
}
