/*
Package container provides dependency injection capabilities for the feed video backend.

This package implements a simple dependency injection container that helps manage
service dependencies and reduces tight coupling between components.
*/
package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/cache"
	"github.com/feedreel/feed-video-backend/feed"
	"github.com/feedreel/feed-video-backend/handlers"
	"github.com/feedreel/feed-video-backend/handlers/health"
	"github.com/feedreel/feed-video-backend/render"
	"github.com/feedreel/feed-video-backend/shotstack"
	"github.com/feedreel/feed-video-backend/tracker"
)

// Options carries the settings InitializeServices needs to build the graph
type Options struct {
	ProjectID        string
	APIKey           string
	BaseURL          string
	TemplateID       string
	WebhookURL       string
	PollInterval     time.Duration
	WaitTimeout      time.Duration
	ItemPacingDelay  time.Duration
	FallbackImageURL string
	PublicDir        string
	FFmpegPath       string
	MaxItemsPerFeed  int
	DefaultFeedTTL   time.Duration
	HighFreqFeedTTL  time.Duration
	LowFreqFeedTTL   time.Duration
	AsyncWorkers     int
	AsyncQueueSize   int
	RejectThreshold  float64
	WaitTimeoutQueue time.Duration
	Logger           *logrus.Logger
}

// Container holds all service dependencies
type Container struct {
	mu         sync.RWMutex
	services   map[string]interface{}
	factories  map[string]func() (interface{}, error)
	singletons map[string]interface{}

	datastoreClient *datastore.Client
	asyncProcessor  *handlers.AsyncProcessor
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		services:   make(map[string]interface{}),
		factories:  make(map[string]func() (interface{}, error)),
		singletons: make(map[string]interface{}),
	}
}

// Register registers a service instance
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterFactory registers a factory function for lazy service creation
func (c *Container) RegisterFactory(name string, factory func() (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// RegisterSingleton registers a singleton service
func (c *Container) RegisterSingleton(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = service
}

// Get retrieves a service by name
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if service, exists := c.services[name]; exists {
		return service, nil
	}
	if singleton, exists := c.singletons[name]; exists {
		return singleton, nil
	}
	if factory, exists := c.factories[name]; exists {
		service, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create service %s: %v", name, err)
		}
		return service, nil
	}

	return nil, fmt.Errorf("service %s not found", name)
}

// GetLogger retrieves the logger service
func (c *Container) GetLogger() (*logrus.Logger, error) {
	service, err := c.Get("logger")
	if err != nil {
		return nil, err
	}
	logger, ok := service.(*logrus.Logger)
	if !ok {
		return nil, fmt.Errorf("logger service is not of expected type")
	}
	return logger, nil
}

// GetTracker retrieves the render status tracker
func (c *Container) GetTracker() (*tracker.Tracker, error) {
	service, err := c.Get("tracker")
	if err != nil {
		return nil, err
	}
	t, ok := service.(*tracker.Tracker)
	if !ok {
		return nil, fmt.Errorf("tracker service is not of expected type")
	}
	return t, nil
}

// GetHandler retrieves the handler service
func (c *Container) GetHandler() (*handlers.Handler, error) {
	service, err := c.Get("handler")
	if err != nil {
		return nil, err
	}
	handler, ok := service.(*handlers.Handler)
	if !ok {
		return nil, fmt.Errorf("handler service is not of expected type")
	}
	return handler, nil
}

// GetHealthHandler retrieves the health handler service
func (c *Container) GetHealthHandler() (*health.Handler, error) {
	service, err := c.Get("health")
	if err != nil {
		return nil, err
	}
	handler, ok := service.(*health.Handler)
	if !ok {
		return nil, fmt.Errorf("health service is not of expected type")
	}
	return handler, nil
}

// InitializeServices builds the full service graph. The render status store
// uses Datastore when a project ID is configured and process memory otherwise.
func (c *Container) InitializeServices(opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	c.RegisterSingleton("logger", logger)

	var store tracker.Store
	if opts.ProjectID != "" {
		client, err := datastore.NewClient(context.Background(), opts.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to create Datastore client: %v", err)
		}
		c.datastoreClient = client
		store = tracker.NewDatastoreStore(client)
		logger.WithField("project_id", opts.ProjectID).Info("Render status store backed by Datastore")
	} else {
		store = tracker.NewMemoryStore()
		logger.Info("Render status store kept in process memory")
	}

	statusTracker := tracker.New(store, logger)
	c.RegisterSingleton("tracker", statusTracker)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	extractor := feed.NewExtractor(httpClient, opts.FallbackImageURL, logger)
	extractor.SetScraper(feed.NewScraper(httpClient))
	c.RegisterSingleton("extractor", extractor)

	renderClient := shotstack.NewClient(opts.APIKey, opts.BaseURL, opts.WebhookURL, httpClient, logger)
	renderClient.SetRecorder(statusTracker)
	renderClient.SetPollInterval(opts.PollInterval)
	c.RegisterSingleton("render_client", renderClient)

	localRenderer := render.NewFFmpegRenderer(opts.FFmpegPath, opts.PublicDir, httpClient, logger)
	downloader := render.NewDownloader(opts.PublicDir, nil, logger)

	cacheManager := cache.NewManager(
		cache.NewInMemoryCache(opts.DefaultFeedTTL),
		logger,
		opts.DefaultFeedTTL,
		opts.HighFreqFeedTTL,
		opts.LowFreqFeedTTL,
	)
	c.RegisterSingleton("cache", cacheManager)

	waitClient := &renderWaiter{client: renderClient, defaultTimeout: opts.WaitTimeout}
	batch := handlers.NewBatchProcessor(extractor, waitClient, cacheManager, logger, opts.ItemPacingDelay, opts.WaitTimeout)

	c.asyncProcessor = handlers.NewAsyncProcessor(
		opts.AsyncWorkers,
		opts.AsyncQueueSize,
		true,
		opts.RejectThreshold,
		opts.WaitTimeoutQueue,
		logger,
		batch,
	)

	handler := handlers.NewHandler(handlers.HandlerConfig{
		Extractor:       extractor,
		Renderer:        waitClient,
		RenderLister:    renderClient,
		LocalRenderer:   localRenderer,
		Tracker:         statusTracker,
		Mirror:          downloader,
		CacheManager:    cacheManager,
		Batch:           batch,
		Logger:          logger,
		TemplateID:      opts.TemplateID,
		MaxItemsPerFeed: opts.MaxItemsPerFeed,
		PublicDir:       opts.PublicDir,
	})
	handler.AsyncProcessor = c.asyncProcessor
	c.RegisterSingleton("handler", handler)

	c.RegisterSingleton("health", health.NewHandler(statusTracker, opts.PublicDir, logger))

	return nil
}

// Close gracefully closes all service connections
func (c *Container) Close() error {
	if c.asyncProcessor != nil {
		c.asyncProcessor.Stop()
	}
	if c.datastoreClient != nil {
		if err := c.datastoreClient.Close(); err != nil {
			return fmt.Errorf("failed to close datastore client: %v", err)
		}
	}
	return nil
}

// renderWaiter adapts the render client to the blocking per-item renderer
// used by the batch processor, pinning the configured wait timeout
type renderWaiter struct {
	client         *shotstack.Client
	defaultTimeout time.Duration
}

func (w *renderWaiter) CreateStoryVideo(ctx context.Context, templateID, title, imageURL string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = w.defaultTimeout
	}
	return w.client.CreateStoryVideo(ctx, templateID, title, imageURL, timeout)
}
