// Package download fetches remote sources into a workspace via yt-dlp.
package download

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/services"
)

// Client invokes the downloader.
type Client struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewClient builds a client for the given downloader executable.
func NewClient(binary string) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	return &Client{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.commandRunner = runner
}

// Fetch downloads url into destDir as input.<ext> and returns the downloaded
// file's path. The extension is whatever the source provides; conversion to
// WAV happens later in the pipeline.
func (c *Client) Fetch(ctx context.Context, url, destDir string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", services.Wrap(services.ErrValidation, "", "download", "url required", nil)
	}

	args := []string{
		"--no-playlist",
		"--no-progress",
		"-P", destDir,
		"-o", "input.%(ext)s",
		"--", url,
	}
	if err := c.run(ctx, args...); err != nil {
		return "", fmt.Errorf("downloader: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "input.*"))
	if err != nil {
		return "", fmt.Errorf("scan downloads: %w", err)
	}
	for _, match := range matches {
		// Skip downloader bookkeeping files.
		switch filepath.Ext(match) {
		case ".part", ".ytdl", ".json":
			continue
		}
		return match, nil
	}
	return "", services.Wrap(services.ErrExternalTool, "", "download",
		"downloader exited cleanly but produced no file", nil)
}

func (c *Client) run(ctx context.Context, args ...string) error {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, c.binary, args...)
	}
	cmd := exec.CommandContext(ctx, c.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}
