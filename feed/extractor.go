/*
Package feed extracts normalized story items from RSS/MRSS documents.

Key Types:
  - Item: a normalized feed item (title, link, resolved image URL).
  - Extractor: parses a feed and resolves one image per item.

Dependencies:
  - Uses the `gofeed` library for RSS/MRSS parsing.
  - Uses `goquery` for the best-effort article image fallback.

Usage:

	extractor := feed.NewExtractor(http.DefaultClient, fallbackURL, logger)
	items, err := extractor.ExtractFromURL(ctx, "https://example.com/rss", 5)
	if err != nil {
	    log.Fatalf("Failed to extract feed items: %v", err)
	}
*/
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

// Item represents one normalized feed item ready for rendering
type Item struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	ImageURL    string    `json:"image_url,omitempty"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Published   time.Time `json:"published,omitempty"`
}

// Sanitize trims whitespace from the textual fields
func (i *Item) Sanitize() {
	i.Title = strings.TrimSpace(i.Title)
	i.Link = strings.TrimSpace(i.Link)
	i.ImageURL = strings.TrimSpace(i.ImageURL)
	i.Description = strings.TrimSpace(i.Description)
	i.Author = strings.TrimSpace(i.Author)
}

// Validate validates the Item fields
func (i *Item) Validate() error {
	var errs []string

	if i.Title == "" {
		errs = append(errs, "title cannot be empty")
	} else if len(i.Title) > 500 {
		errs = append(errs, "title cannot exceed 500 characters")
	}

	if i.Link != "" {
		if _, err := url.ParseRequestURI(i.Link); err != nil {
			errs = append(errs, "link must be a valid URL")
		}
	}

	if len(i.Description) > 2000 {
		errs = append(errs, "description cannot exceed 2000 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(errs, ", "))
	}
	return nil
}

// ImageScraper resolves a best-effort image URL from an article page
type ImageScraper interface {
	FirstImage(ctx context.Context, articleURL string) (string, error)
}

// Extractor parses feed documents into Items and resolves one image per item
type Extractor struct {
	parser        *gofeed.Parser
	httpClient    *http.Client
	scraper       ImageScraper
	fallbackImage string
	logger        *logrus.Logger
}

// NewExtractor creates an Extractor. fallbackImage is the placeholder used
// when neither the feed nor the linked article yields an image.
func NewExtractor(httpClient *http.Client, fallbackImage string, logger *logrus.Logger) *Extractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{
		parser:        gofeed.NewParser(),
		httpClient:    httpClient,
		scraper:       NewScraper(httpClient),
		fallbackImage: fallbackImage,
		logger:        logger,
	}
}

// SetScraper overrides the article image scraper
func (e *Extractor) SetScraper(s ImageScraper) {
	e.scraper = s
}

// ExtractFromURL retrieves the feed document and extracts up to maxItems items.
// Retrieval failures return a *FetchError, malformed documents a *ParseError.
func (e *Extractor) ExtractFromURL(ctx context.Context, feedURL string, maxItems int) ([]*Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: feedURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	return e.extract(ctx, feedURL, data, maxItems)
}

// Extract parses raw feed bytes and extracts up to maxItems items
func (e *Extractor) Extract(ctx context.Context, data []byte, maxItems int) ([]*Item, error) {
	return e.extract(ctx, "", data, maxItems)
}

func (e *Extractor) extract(ctx context.Context, feedURL string, data []byte, maxItems int) ([]*Item, error) {
	parsed, err := e.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{URL: feedURL, Err: err}
	}

	items := make([]*Item, 0, maxItems)
	for _, entry := range parsed.Items {
		if len(items) >= maxItems {
			break
		}

		item := &Item{
			Title:       entry.Title,
			Link:        entry.Link,
			Description: entry.Description,
			Author:      handleAuthor(entry),
		}
		if entry.PublishedParsed != nil {
			item.Published = *entry.PublishedParsed
		}
		item.Sanitize()

		// Items without a usable title are skipped and do not count
		// against maxItems.
		if err := item.Validate(); err != nil {
			e.logger.WithFields(logrus.Fields{
				"feed_url": feedURL,
				"link":     entry.Link,
				"error":    err.Error(),
			}).Debug("Skipping invalid feed item")
			continue
		}

		item.ImageURL = e.resolveImage(ctx, entry, item.Link)
		items = append(items, item)
	}

	return items, nil
}

// resolveImage picks an image for the item. Precedence: media:content,
// media:thumbnail, enclosure, first <img> of the linked article, configured
// fallback. Scrape failures degrade to the fallback and never fail extraction.
func (e *Extractor) resolveImage(ctx context.Context, entry *gofeed.Item, link string) string {
	if u := mediaExtensionURL(entry, "content"); u != "" {
		return u
	}
	if u := mediaExtensionURL(entry, "thumbnail"); u != "" {
		return u
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}

	if link != "" && e.scraper != nil {
		img, err := e.scraper.FirstImage(ctx, link)
		if err == nil && img != "" {
			return img
		}
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"link":  link,
				"error": err.Error(),
			}).Warn("Could not extract image from article, using fallback")
		}
	}

	return e.fallbackImage
}

// mediaExtensionURL reads the url attribute of a media:<name> extension
func mediaExtensionURL(entry *gofeed.Item, name string) string {
	media, ok := entry.Extensions["media"]
	if !ok {
		return ""
	}
	for _, ext := range media[name] {
		if u := ext.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}

func handleAuthor(entry *gofeed.Item) string {
	if entry.Author != nil {
		return entry.Author.Name
	}
	return ""
}
