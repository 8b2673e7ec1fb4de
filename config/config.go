/*
Package config provides configuration management for the feed video backend.

This package separates configuration concerns from business logic and provides
a centralized way to manage application configuration including the rendering
API credentials, status persistence, caching, and other service dependencies.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/container"
	"github.com/feedreel/feed-video-backend/middleware"
)

// Config holds all application configuration
type Config struct {
	LogLevel   string
	ServerPort string
	// Optional Datastore project; render status stays in memory when unset
	ProjectID string
	// Rendering API configuration
	RenderConfig RenderConfig
	// Rate limiting configuration
	RateLimitRequestsPerMinute float64
	RateLimitBurst             int
	// Enhanced CORS configuration
	CORSConfig CORSConfig
	// Cleanup intervals
	ClientCleanupInterval time.Duration
	// Performance optimization settings
	PerformanceConfig PerformanceConfig
}

// RenderConfig holds the cloud and local rendering settings
type RenderConfig struct {
	APIKey           string
	BaseURL          string
	TemplateID       string
	WebhookBaseURL   string
	PollInterval     time.Duration
	WaitTimeout      time.Duration
	ItemPacingDelay  time.Duration
	FallbackImageURL string
	PublicDir        string
	FFmpegPath       string
	JaegerEndpoint   string
	MaxItemsPerFeed  int
}

// WebhookURL returns the full callback URL for render notifications, or
// empty when no public base URL is configured
func (r RenderConfig) WebhookURL() string {
	if r.WebhookBaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(r.WebhookBaseURL, "/") + "/webhook/shotstack"
}

// PerformanceConfig holds performance-related configuration
type PerformanceConfig struct {
	// Cache TTL settings
	DefaultFeedTTL  time.Duration `json:"default_feed_ttl"`
	HighFreqFeedTTL time.Duration `json:"high_freq_feed_ttl"`
	LowFreqFeedTTL  time.Duration `json:"low_freq_feed_ttl"`
	// Async processor settings
	AsyncWorkers         int           `json:"async_workers"`
	AsyncQueueSize       int           `json:"async_queue_size"`
	AsyncBackpressure    bool          `json:"async_backpressure"`
	AsyncRejectThreshold float64       `json:"async_reject_threshold"`
	AsyncWaitTimeout     time.Duration `json:"async_wait_timeout"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	Environment        string
	DevelopmentOrigins []string
	StagingOrigins     []string
	ProductionOrigins  []string
	AllowedMethods     []string
	AllowedHeaders     []string
	ExposedHeaders     []string
	AllowCredentials   bool
	MaxAge             int
	AllowSubdomains    bool
	AllowedDomains     []string
}

// Services holds all service dependencies
type Services struct {
	Container *container.Container
	Logger    *logrus.Logger
}

// AppConfig holds both configuration and services
type AppConfig struct {
	Config   *Config
	Services *Services
}

// NewConfig creates a new configuration instance. A .env file in the working
// directory is loaded first when present.
func NewConfig() *Config {
	_ = godotenv.Load()

	environment := getEnv("ENVIRONMENT", "development")

	return &Config{
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		ServerPort: getEnv("SERVER_PORT", "3000"),
		ProjectID:  getEnv("PROJECT_ID", ""),
		RenderConfig: RenderConfig{
			APIKey:           getEnv("SHOTSTACK_API_KEY", ""),
			BaseURL:          getEnv("SHOTSTACK_BASE_URL", "https://api.shotstack.io/edit/v1"),
			TemplateID:       getEnv("SHOTSTACK_TEMPLATE_ID", ""),
			WebhookBaseURL:   getEnv("WEBHOOK_BASE_URL", ""),
			PollInterval:     getEnvDuration("POLL_INTERVAL", 5*time.Second),
			WaitTimeout:      getEnvDuration("RENDER_WAIT_TIMEOUT", 5*time.Minute),
			ItemPacingDelay:  getEnvDuration("ITEM_PACING_DELAY", 2*time.Second),
			FallbackImageURL: getEnv("FALLBACK_IMAGE_URL", "https://placehold.co/1280x720/jpg"),
			PublicDir:        getEnv("PUBLIC_DIR", "public"),
			FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
			JaegerEndpoint:   getEnv("JAEGER_ENDPOINT", ""),
			MaxItemsPerFeed:  getEnvInt("MAX_ITEMS_PER_FEED", 5),
		},
		// Rate limiting defaults (30 requests per minute, burst of 10)
		RateLimitRequestsPerMinute: getEnvFloat("RATE_LIMIT_RPM", 30.0),
		RateLimitBurst:             getEnvInt("RATE_LIMIT_BURST", 10),
		CORSConfig: CORSConfig{
			Environment: environment,
			DevelopmentOrigins: getEnvSlice("DEV_CORS_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:3001",
				"http://127.0.0.1:3000",
				"http://localhost:8080",
			}),
			StagingOrigins: getEnvSlice("STAGING_CORS_ORIGINS", []string{
				"https://staging.feedreel.io",
			}),
			ProductionOrigins: getEnvSlice("PROD_CORS_ORIGINS", []string{
				"https://feedreel.io",
				"https://www.feedreel.io",
			}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{
				"GET", "POST", "OPTIONS",
			}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{
				"Content-Type", "Authorization", "X-Requested-With",
				"X-Request-ID", "Accept", "Origin", "Cache-Control",
			}),
			ExposedHeaders: getEnvSlice("CORS_EXPOSED_HEADERS", []string{
				"X-Request-ID", "X-Total-Count",
			}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getEnvInt("CORS_MAX_AGE", 86400),
			AllowSubdomains:  getEnvBool("CORS_ALLOW_SUBDOMAINS", false),
			AllowedDomains:   getEnvSlice("CORS_ALLOWED_DOMAINS", []string{}),
		},
		ClientCleanupInterval: getEnvDuration("CLIENT_CLEANUP_INTERVAL", 1*time.Minute),
		PerformanceConfig: PerformanceConfig{
			DefaultFeedTTL:  getEnvDuration("DEFAULT_FEED_TTL", 15*time.Minute),
			HighFreqFeedTTL: getEnvDuration("HIGH_FREQ_FEED_TTL", 5*time.Minute),
			LowFreqFeedTTL:  getEnvDuration("LOW_FREQ_FEED_TTL", 60*time.Minute),
			// Batch jobs are long-lived; keep the worker pool small
			AsyncWorkers:         getEnvInt("ASYNC_WORKERS", 2),
			AsyncQueueSize:       getEnvInt("ASYNC_QUEUE_SIZE", 20),
			AsyncBackpressure:    getEnvBool("ASYNC_BACKPRESSURE", true),
			AsyncRejectThreshold: getEnvFloat("ASYNC_REJECT_THRESHOLD", 0.8),
			AsyncWaitTimeout:     getEnvDuration("ASYNC_WAIT_TIMEOUT", 5*time.Second),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RenderConfig.APIKey == "" {
		return fmt.Errorf("SHOTSTACK_API_KEY environment variable is required")
	}
	if c.RenderConfig.TemplateID == "" {
		return fmt.Errorf("SHOTSTACK_TEMPLATE_ID environment variable is required")
	}
	return nil
}

// NewServices creates and initializes all service dependencies using the DI container
func NewServices(config *Config) (*Services, error) {
	logger := middleware.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	diContainer := container.NewContainer()
	if err := diContainer.InitializeServices(container.Options{
		ProjectID:        config.ProjectID,
		APIKey:           config.RenderConfig.APIKey,
		BaseURL:          config.RenderConfig.BaseURL,
		TemplateID:       config.RenderConfig.TemplateID,
		WebhookURL:       config.RenderConfig.WebhookURL(),
		PollInterval:     config.RenderConfig.PollInterval,
		WaitTimeout:      config.RenderConfig.WaitTimeout,
		ItemPacingDelay:  config.RenderConfig.ItemPacingDelay,
		FallbackImageURL: config.RenderConfig.FallbackImageURL,
		PublicDir:        config.RenderConfig.PublicDir,
		FFmpegPath:       config.RenderConfig.FFmpegPath,
		MaxItemsPerFeed:  config.RenderConfig.MaxItemsPerFeed,
		DefaultFeedTTL:   config.PerformanceConfig.DefaultFeedTTL,
		HighFreqFeedTTL:  config.PerformanceConfig.HighFreqFeedTTL,
		LowFreqFeedTTL:   config.PerformanceConfig.LowFreqFeedTTL,
		AsyncWorkers:     config.PerformanceConfig.AsyncWorkers,
		AsyncQueueSize:   config.PerformanceConfig.AsyncQueueSize,
		RejectThreshold:  config.PerformanceConfig.AsyncRejectThreshold,
		WaitTimeoutQueue: config.PerformanceConfig.AsyncWaitTimeout,
		Logger:           logger,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize dependency container: %v", err)
	}

	return &Services{
		Container: diContainer,
		Logger:    logger,
	}, nil
}

// NewAppConfig creates a new application configuration with all dependencies
func NewAppConfig() (*AppConfig, error) {
	config := NewConfig()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	services, err := NewServices(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %v", err)
	}

	return &AppConfig{
		Config:   config,
		Services: services,
	}, nil
}

// Close gracefully closes all service connections
func (s *Services) Close() error {
	if s.Container != nil {
		return s.Container.Close()
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float64 with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as time.Duration with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as bool with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvSlice gets an environment variable as a string slice with a default value
func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
