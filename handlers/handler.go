/*
Package handlers provides HTTP handlers with dependency injection support.

This package defines the Handler struct that contains all service dependencies,
eliminating global variables and enabling better testability and separation of concerns.
*/
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/feed"
	"github.com/feedreel/feed-video-backend/render"
	"github.com/feedreel/feed-video-backend/tracker"
	"github.com/feedreel/feed-video-backend/types"
)

// FeedExtractor defines feed item extraction
type FeedExtractor interface {
	ExtractFromURL(ctx context.Context, feedURL string, maxItems int) ([]*feed.Item, error)
}

// VideoRenderer drives one cloud render to completion
type VideoRenderer interface {
	CreateStoryVideo(ctx context.Context, templateID, title, imageURL string, timeout time.Duration) (string, error)
}

// RenderLister lists renders on the cloud rendering account
type RenderLister interface {
	ListRenders(ctx context.Context) (json.RawMessage, error)
}

// LocalRenderer produces a video on the local machine
type LocalRenderer interface {
	CreateStoryVideo(ctx context.Context, title, imageURL string, opts render.TextOptions) (string, error)
}

// StatusTracker defines the render status record operations
type StatusTracker interface {
	Merge(ctx context.Context, renderID string, update types.StatusUpdate) (*types.RenderJob, error)
	Get(ctx context.Context, renderID string) (*types.RenderJob, error)
	List(ctx context.Context) ([]*types.RenderJob, error)
}

// VideoMirror saves finished cloud renders locally in the background
type VideoMirror interface {
	DownloadAsync(renderID, videoURL string)
}

// CacheManagerInterface defines the interface for cache operations
type CacheManagerInterface interface {
	GetFeedItems(url string) ([]*feed.Item, bool)
	SetFeedItems(url string, items []*feed.Item) error
}

// AsyncProcessorInterface defines the interface for background batch processing
type AsyncProcessorInterface interface {
	SubmitJob(feedURL, templateID string, maxItems int, requestID string) (string, error)
	GetJobStatus(jobID string) (*types.AsyncBatchStatus, bool)
}

// Handler contains all service dependencies for HTTP handlers
type Handler struct {
	Extractor      FeedExtractor
	Renderer       VideoRenderer
	RenderLister   RenderLister
	LocalRenderer  LocalRenderer
	Tracker        StatusTracker
	Mirror         VideoMirror
	CacheManager   CacheManagerInterface
	AsyncProcessor AsyncProcessorInterface
	Batch          *BatchProcessor
	Logger         *logrus.Logger

	// Defaults applied when requests omit the fields
	TemplateID      string
	MaxItemsPerFeed int
	PublicDir       string
}

// HandlerConfig carries the dependencies and defaults for NewHandler
type HandlerConfig struct {
	Extractor       FeedExtractor
	Renderer        VideoRenderer
	RenderLister    RenderLister
	LocalRenderer   LocalRenderer
	Tracker         StatusTracker
	Mirror          VideoMirror
	CacheManager    CacheManagerInterface
	Batch           *BatchProcessor
	Logger          *logrus.Logger
	TemplateID      string
	MaxItemsPerFeed int
	PublicDir       string
}

// NewHandler creates a new handler instance with injected dependencies
func NewHandler(cfg HandlerConfig) *Handler {
	maxItems := cfg.MaxItemsPerFeed
	if maxItems <= 0 {
		maxItems = 5
	}
	return &Handler{
		Extractor:       cfg.Extractor,
		Renderer:        cfg.Renderer,
		RenderLister:    cfg.RenderLister,
		LocalRenderer:   cfg.LocalRenderer,
		Tracker:         cfg.Tracker,
		Mirror:          cfg.Mirror,
		CacheManager:    cfg.CacheManager,
		Batch:           cfg.Batch,
		Logger:          cfg.Logger,
		TemplateID:      cfg.TemplateID,
		MaxItemsPerFeed: maxItems,
		PublicDir:       cfg.PublicDir,
	}
}

// validateFeedURL checks and normalizes a user-supplied feed URL
func validateFeedURL(inputURL string) (string, error) {
	if inputURL == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}
	if len(inputURL) > 2048 {
		return "", fmt.Errorf("URL length exceeds maximum allowed size")
	}

	parsedURL, err := url.Parse(inputURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %v", err)
	}

	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "https"
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("only HTTP and HTTPS URLs are allowed")
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must have a valid host")
	}

	if isPrivateOrLocalhost(strings.ToLower(parsedURL.Host)) {
		return "", fmt.Errorf("access to private networks and localhost is not allowed")
	}

	return parsedURL.String(), nil
}

// isPrivateOrLocalhost checks if the host is a private IP or localhost
func isPrivateOrLocalhost(host string) bool {
	hostOnly := host
	if strings.Contains(host, ":") {
		hostOnly = strings.Split(host, ":")[0]
	}

	localhostPatterns := []string{
		"localhost", "127.0.0.1", "::1", "0.0.0.0",
	}
	for _, pattern := range localhostPatterns {
		if hostOnly == pattern {
			return true
		}
	}

	if ip := net.ParseIP(hostOnly); ip != nil {
		return ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified()
	}

	privateDomainPatterns := []string{
		".local", ".localhost", ".internal", ".lan", ".test",
	}
	for _, pattern := range privateDomainPatterns {
		if strings.HasSuffix(hostOnly, pattern) {
			return true
		}
	}

	return false
}

// isNotFound reports whether err is the tracker's missing-record error
func isNotFound(err error) bool {
	return errors.Is(err, tracker.ErrNotFound)
}
