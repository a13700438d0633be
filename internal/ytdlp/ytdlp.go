package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"bansub/internal/logging"
)

// VideoInfo is the metadata subset this pipeline uses from yt-dlp.
type VideoInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var (
	unsafeChars  = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	separatorRun = regexp.MustCompile(`[-\s]+`)
)

// Filename returns a filesystem-safe name derived from the title.
func (v *VideoInfo) Filename() string {
	return SanitizeFilename(v.Title)
}

// SanitizeFilename keeps only word characters, spaces, and hyphens, then
// collapses separator runs into single underscores.
func SanitizeFilename(text string) string {
	safe := strings.TrimSpace(unsafeChars.ReplaceAllString(text, ""))
	return separatorRun.ReplaceAllString(safe, "_")
}

// Client shells out to the yt-dlp binary for metadata and downloads.
type Client struct {
	binary     string
	cookiesTxt string
	logger     *logging.Logger
}

// NewClient resolves the yt-dlp binary: the BANSUB_YTDLP_PATH override
// first, then PATH lookup. cookiesTxt may be empty.
func NewClient(cookiesTxt string, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	binary := os.Getenv("BANSUB_YTDLP_PATH")
	if binary == "" {
		found, err := exec.LookPath("yt-dlp")
		if err != nil {
			return nil, fmt.Errorf("yt-dlp not found: install it or set BANSUB_YTDLP_PATH: %w", err)
		}
		binary = found
	}

	return &Client{binary: binary, cookiesTxt: cookiesTxt, logger: logger}, nil
}

func (c *Client) baseArgs() []string {
	var args []string
	if c.cookiesTxt != "" {
		args = append(args, "--cookies", c.cookiesTxt)
	}
	return args
}

// FetchInfo extracts video metadata without downloading.
func (c *Client) FetchInfo(ctx context.Context, url string) (*VideoInfo, error) {
	c.logger.Infow("Extracting video info", "url", url)

	args := append(c.baseArgs(), "--dump-single-json", "--no-download", url)
	cmd := exec.CommandContext(ctx, c.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp info fetch failed: %w: %s",
			err, strings.TrimSpace(stderr.String()))
	}

	var info VideoInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp metadata: %w", err)
	}
	if info.ID == "" || info.Title == "" {
		return nil, fmt.Errorf("yt-dlp metadata missing id or title for %s", url)
	}

	c.logger.Infow("Extracted video info", "title", info.Title)
	return &info, nil
}

// Download fetches the video into dir as numbered mp4 segments, with the
// thumbnail and metadata embedded and an info JSON written alongside.
func (c *Client) Download(ctx context.Context, url, dir string) error {
	c.logger.Infow("Starting download", "url", url, "dir", dir)

	args := append(c.baseArgs(),
		"--format", "bestvideo+bestaudio/best",
		"--merge-output-format", "mp4",
		"--write-thumbnail",
		"--convert-thumbnails", "jpg",
		"--embed-thumbnail",
		"--embed-metadata",
		"--embed-chapters",
		"--write-info-json",
		"--output", filepath.Join(dir, "%(playlist_index|0)s.%(ext)s"),
		"--output", "thumbnail:"+filepath.Join(dir, "cover.%(ext)s"),
		"--output", "infojson:"+filepath.Join(dir, "metadata"),
		url,
	)
	cmd := exec.CommandContext(ctx, c.binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp download failed: %w: %s",
			err, strings.TrimSpace(stderr.String()))
	}

	c.logger.Infow("Download complete", "url", url)
	return nil
}
