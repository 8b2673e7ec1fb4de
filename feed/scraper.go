package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Scraper extracts the first image reference from an article page.
// It is a single best-effort DOM query; callers treat any failure as
// "no image found".
type Scraper struct {
	httpClient *http.Client
}

// NewScraper creates a Scraper backed by the given HTTP client
func NewScraper(httpClient *http.Client) *Scraper {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Scraper{httpClient: httpClient}
}

// FirstImage fetches the article and returns the src of its first <img>,
// resolved against the article URL when relative.
func (s *Scraper) FirstImage(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("article fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	src, ok := doc.Find("img").First().Attr("src")
	if !ok || src == "" {
		return "", fmt.Errorf("no image found in article")
	}

	return absoluteURL(articleURL, src), nil
}

// absoluteURL resolves src against base when src is relative
func absoluteURL(base, src string) string {
	srcURL, err := url.Parse(src)
	if err != nil {
		return src
	}
	if srcURL.IsAbs() {
		return src
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return src
	}
	return baseURL.ResolveReference(srcURL).String()
}
