// Package render produces story videos on the local machine with FFmpeg and
// mirrors finished cloud renders into the public directory.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultDuration = 15 * time.Second
	outputSize      = "1280x720"
)

// TextOptions controls the headline overlay of a local render
type TextOptions struct {
	FontSize       int
	FontColor      string
	Position       string // top, center or bottom
	ShowBackground bool
}

// DefaultTextOptions matches the cloud template's look
func DefaultTextOptions() TextOptions {
	return TextOptions{
		FontSize:       48,
		FontColor:      "white",
		Position:       "bottom",
		ShowBackground: true,
	}
}

// FFmpegRenderer renders Ken Burns style story videos from a single image
type FFmpegRenderer struct {
	ffmpegPath string
	publicDir  string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewFFmpegRenderer creates a renderer writing into publicDir. ffmpegPath
// may be empty to use the ffmpeg binary on PATH.
func NewFFmpegRenderer(ffmpegPath, publicDir string, httpClient *http.Client, logger *logrus.Logger) *FFmpegRenderer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &FFmpegRenderer{
		ffmpegPath: ffmpegPath,
		publicDir:  publicDir,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateStoryVideo downloads the image, renders a slow-zoom video with the
// title drawn over it, and returns the public path of the result
func (r *FFmpegRenderer) CreateStoryVideo(ctx context.Context, title, imageURL string, opts TextOptions) (string, error) {
	if opts.FontSize <= 0 {
		opts.FontSize = 48
	}
	if opts.FontColor == "" {
		opts.FontColor = "white"
	}

	id := uuid.NewString()
	imagePath := filepath.Join(r.publicDir, id+".jpg")
	videoPath := filepath.Join(r.publicDir, id+".mp4")

	if err := r.downloadImage(ctx, imageURL, imagePath); err != nil {
		return "", err
	}
	defer os.Remove(imagePath)

	filter := strings.Join([]string{
		"zoompan=z='min(zoom+0.0005,1.2)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=450:s=" + outputSize,
		drawtextFilter(title, opts),
	}, ",")

	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-vf", filter,
		"-t", strconv.Itoa(int(defaultDuration.Seconds())),
		"-r", "30",
		"-pix_fmt", "yuv420p",
		videoPath,
	}

	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.WithFields(logrus.Fields{
		"video": id + ".mp4",
		"title": title,
	}).Info("Starting local render")

	if err := cmd.Run(); err != nil {
		os.Remove(videoPath)
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(stderr.String()))
	}

	return "/public/" + id + ".mp4", nil
}

func (r *FFmpegRenderer) downloadImage(ctx context.Context, imageURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("invalid image URL: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to download image: unexpected status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

func drawtextFilter(title string, opts TextOptions) string {
	var y string
	switch opts.Position {
	case "top":
		y = "50"
	case "center":
		y = "'(h-text_h)/2'"
	default:
		y = "'h-text_h-50'"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "drawtext=text='%s':fontcolor=%s:fontsize=%d", EscapeDrawtext(title), opts.FontColor, opts.FontSize)
	if opts.ShowBackground {
		b.WriteString(":box=1:boxcolor=black@0.5:boxborderw=5")
	}
	fmt.Fprintf(&b, ":x='(w-text_w)/2':y=%s", y)
	return b.String()
}

// EscapeDrawtext strips characters that break the drawtext filter syntax.
// Single quotes become backticks so headlines keep an apostrophe look.
func EscapeDrawtext(text string) string {
	replacer := strings.NewReplacer(
		"'", "`",
		":", "",
		"=", "",
		"[", "",
		"]", "",
		"(", "",
		")", "",
		",", "",
		";", "",
		"\n", "",
		"\r", "",
	)
	return replacer.Replace(text)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
