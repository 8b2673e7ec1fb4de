/*
Package cache holds recently extracted feed items so repeated batch requests
against the same feed skip refetching and re-parsing it.
*/
package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feedreel/feed-video-backend/feed"
)

// entry is a cached item list with expiration
type entry struct {
	items     []*feed.Item
	expiresAt time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Cache defines the item caching operations
type Cache interface {
	Get(key string) ([]*feed.Item, bool)
	Set(key string, items []*feed.Item, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// InMemoryCache is a TTL cache kept in process memory
type InMemoryCache struct {
	entries map[string]*entry
	mutex   sync.RWMutex
	ttl     time.Duration
}

// NewInMemoryCache creates a cache with the given default TTL
func NewInMemoryCache(defaultTTL time.Duration) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]*entry),
		ttl:     defaultTTL,
	}
	go c.startCleanup()
	return c
}

// Get retrieves items, reporting a miss for expired entries
func (c *InMemoryCache) Get(key string) ([]*feed.Item, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired() {
		return nil, false
	}
	return e.items, true
}

// Set stores items; a zero ttl uses the cache default
func (c *InMemoryCache) Set(key string, items []*feed.Item, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &entry{
		items:     items,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a single entry
func (c *InMemoryCache) Delete(key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
	return nil
}

// Clear removes all entries
func (c *InMemoryCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*entry)
	return nil
}

func (c *InMemoryCache) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *InMemoryCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, e := range c.entries {
		if e.expired() {
			delete(c.entries, key)
		}
	}
}

// Manager caches feed extractions with a TTL adapted to how often the feed
// publishes
type Manager struct {
	cache  Cache
	logger *logrus.Logger

	defaultTTL  time.Duration
	highFreqTTL time.Duration
	lowFreqTTL  time.Duration
}

// NewManager creates a cache manager over the given cache
func NewManager(cache Cache, logger *logrus.Logger, defaultTTL, highFreqTTL, lowFreqTTL time.Duration) *Manager {
	return &Manager{
		cache:       cache,
		logger:      logger,
		defaultTTL:  defaultTTL,
		highFreqTTL: highFreqTTL,
		lowFreqTTL:  lowFreqTTL,
	}
}

// GetFeedItems retrieves cached items for a feed URL
func (m *Manager) GetFeedItems(url string) ([]*feed.Item, bool) {
	items, found := m.cache.Get(feedKey(url))

	if found {
		m.logger.WithFields(logrus.Fields{
			"url":         url,
			"items_count": len(items),
		}).Debug("Cache hit for feed")
	} else {
		m.logger.WithField("url", url).Debug("Cache miss for feed")
	}

	return items, found
}

// SetFeedItems caches items for a feed URL with adaptive TTL
func (m *Manager) SetFeedItems(url string, items []*feed.Item) error {
	ttl := m.adaptiveTTL(items)

	if err := m.cache.Set(feedKey(url), items, ttl); err != nil {
		m.logger.WithFields(logrus.Fields{
			"url":   url,
			"error": err.Error(),
		}).Error("Failed to cache feed items")
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"url":         url,
		"items_count": len(items),
		"ttl_minutes": ttl.Minutes(),
	}).Debug("Cached feed items")

	return nil
}

// InvalidateFeed removes cached items for a feed URL
func (m *Manager) InvalidateFeed(url string) error {
	if err := m.cache.Delete(feedKey(url)); err != nil {
		m.logger.WithFields(logrus.Fields{
			"url":   url,
			"error": err.Error(),
		}).Error("Failed to invalidate feed cache")
		return err
	}

	m.logger.WithField("url", url).Debug("Invalidated feed cache")
	return nil
}

// ClearAll clears the whole cache
func (m *Manager) ClearAll() error {
	if err := m.cache.Clear(); err != nil {
		m.logger.WithError(err).Error("Failed to clear cache")
		return err
	}
	m.logger.Info("Cache cleared")
	return nil
}

// adaptiveTTL picks a TTL from the feed's publishing cadence. Busy feeds
// get the short TTL so new stories surface quickly; quiet feeds get the
// long one.
func (m *Manager) adaptiveTTL(items []*feed.Item) time.Duration {
	cadence := publishCadence(items)

	switch {
	case cadence <= time.Hour:
		return m.highFreqTTL
	case cadence >= 24*time.Hour:
		return m.lowFreqTTL
	default:
		return m.defaultTTL
	}
}

// publishCadence returns the average gap between consecutive publications,
// ignoring items without a timestamp and gaps over a week
func publishCadence(items []*feed.Item) time.Duration {
	times := make([]time.Time, 0, len(items))
	for _, item := range items {
		if !item.Published.IsZero() {
			times = append(times, item.Published)
		}
	}
	if len(times) < 2 {
		return 24 * time.Hour
	}

	sort.Slice(times, func(i, j int) bool {
		return times[i].After(times[j])
	})

	var total time.Duration
	count := 0
	for i := 1; i < len(times); i++ {
		gap := times[i-1].Sub(times[i])
		if gap > 0 && gap < 7*24*time.Hour {
			total += gap
			count++
		}
	}
	if count == 0 {
		return 24 * time.Hour
	}
	return total / time.Duration(count)
}

func feedKey(url string) string {
	return fmt.Sprintf("feed:%s", url)
}
