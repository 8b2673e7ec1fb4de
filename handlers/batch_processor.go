package handlers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/feed"
	"github.com/feedreel/feed-video-backend/monitoring"
	"github.com/feedreel/feed-video-backend/types"
)

// BatchProcessor turns the top items of a feed into videos, one render at a
// time. A failed item is recorded and processing moves on; only a feed that
// cannot be fetched or parsed fails the whole run.
type BatchProcessor struct {
	extractor   FeedExtractor
	renderer    VideoRenderer
	cache       CacheManagerInterface
	logger      *logrus.Logger
	pacingDelay time.Duration
	waitTimeout time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatchProcessor creates a batch processor. pacingDelay separates
// consecutive render submissions so the rendering API is not hammered.
func NewBatchProcessor(extractor FeedExtractor, renderer VideoRenderer, cache CacheManagerInterface, logger *logrus.Logger, pacingDelay, waitTimeout time.Duration) *BatchProcessor {
	return &BatchProcessor{
		extractor:   extractor,
		renderer:    renderer,
		cache:       cache,
		logger:      logger,
		pacingDelay: pacingDelay,
		waitTimeout: waitTimeout,
		sleep:       sleepContext,
	}
}

// Run processes up to maxItems items of the feed and returns the ordered
// per-item report. Result order matches feed order.
func (p *BatchProcessor) Run(ctx context.Context, feedURL, templateID string, maxItems int) (*types.BatchResult, error) {
	items, err := p.loadItems(ctx, feedURL, maxItems)
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"feed_url":    feedURL,
		"template_id": templateID,
		"items_count": len(items),
	}).Info("Processing feed items")

	results := make([]types.BatchItemResult, 0, len(items))

	for i, item := range items {
		result := types.BatchItemResult{
			Title:    item.Title,
			Link:     item.Link,
			ImageURL: item.ImageURL,
		}

		videoURL, err := p.renderer.CreateStoryVideo(ctx, templateID, item.Title, item.ImageURL, p.waitTimeout)
		if err != nil {
			result.Status = "error"
			result.Error = err.Error()
			monitoring.RecordBatchItem("error")

			p.logger.WithFields(logrus.Fields{
				"title": item.Title,
				"error": err.Error(),
			}).Error("Failed to create video for item")
		} else {
			result.Status = "success"
			result.VideoURL = videoURL
			monitoring.RecordBatchItem("success")

			p.logger.WithFields(logrus.Fields{
				"title":     item.Title,
				"video_url": videoURL,
			}).Info("Video created for item")
		}

		results = append(results, result)

		// Pause between renders, but not after the last one
		if i < len(items)-1 && p.pacingDelay > 0 {
			if err := p.sleep(ctx, p.pacingDelay); err != nil {
				return nil, err
			}
		}
	}

	summary := types.BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Status == "success" {
			summary.Success++
		} else {
			summary.Errors++
		}
	}

	return &types.BatchResult{
		Summary: summary,
		Videos:  results,
	}, nil
}

// loadItems returns the feed's items from cache when fresh, fetching and
// caching them otherwise
func (p *BatchProcessor) loadItems(ctx context.Context, feedURL string, maxItems int) ([]*feed.Item, error) {
	if p.cache != nil {
		if cached, found := p.cache.GetFeedItems(feedURL); found {
			monitoring.RecordCacheHit("get_feed_items")
			if len(cached) > maxItems {
				cached = cached[:maxItems]
			}
			return cached, nil
		}
		monitoring.RecordCacheMiss("get_feed_items")
	}

	start := time.Now()
	items, err := p.extractor.ExtractFromURL(ctx, feedURL, maxItems)
	if err != nil {
		monitoring.RecordFeedFetch(feedURL, "failed", time.Since(start).Seconds(), -1)
		return nil, err
	}
	monitoring.RecordFeedFetch(feedURL, "success", time.Since(start).Seconds(), len(items))

	if p.cache != nil {
		if err := p.cache.SetFeedItems(feedURL, items); err != nil {
			p.logger.WithFields(logrus.Fields{
				"feed_url": feedURL,
				"error":    err.Error(),
			}).Warn("Failed to cache feed items")
		}
	}

	return items, nil
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
