package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Downloader mirrors finished cloud renders into the public directory so
// videos stay available after the hosted copies expire
type Downloader struct {
	publicDir  string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDownloader creates a downloader writing into publicDir
func NewDownloader(publicDir string, httpClient *http.Client, logger *logrus.Logger) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Downloader{
		publicDir:  publicDir,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Download fetches videoURL and saves it as <renderID>.mp4, returning the
// public path of the saved copy
func (d *Downloader) Download(ctx context.Context, renderID, videoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid video URL: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to download video: unexpected status %s", resp.Status)
	}

	dest := filepath.Join(d.publicDir, renderID+".mp4")
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create video file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to save video: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to save video: %w", err)
	}

	return "/public/" + renderID + ".mp4", nil
}

// DownloadAsync saves the video in the background. Completion of the render
// never waits on the local copy; failures are logged and the hosted URL in
// the status record stays valid.
func (d *Downloader) DownloadAsync(renderID, videoURL string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		path, err := d.Download(ctx, renderID, videoURL)
		if err != nil {
			d.logger.WithFields(logrus.Fields{
				"render_id": renderID,
				"error":     err.Error(),
			}).Warn("Failed to mirror finished render")
			return
		}

		d.logger.WithFields(logrus.Fields{
			"render_id": renderID,
			"path":      path,
		}).Info("Finished render mirrored locally")
	}()
}
