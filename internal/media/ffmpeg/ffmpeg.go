// Package ffmpeg drives the ffmpeg executable for audio normalization and
// chunk extraction. All output is mono 16 kHz PCM WAV, the format the
// transcription engine expects.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Client invokes ffmpeg.
type Client struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewClient builds a client for the given ffmpeg executable.
func NewClient(binary string) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Client{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.commandRunner = runner
}

// Normalize converts any input container into mono 16 kHz pcm_s16le WAV at
// dest, applying the optional audio filter chain.
func (c *Client) Normalize(ctx context.Context, source, filter, dest string) error {
	if strings.TrimSpace(source) == "" {
		return errors.New("ffmpeg normalize: source path required")
	}
	if strings.TrimSpace(dest) == "" {
		return errors.New("ffmpeg normalize: dest path required")
	}
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", source, "-vn"}
	if strings.TrimSpace(filter) != "" {
		args = append(args, "-af", filter)
	}
	args = append(args, "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", dest)
	return c.run(ctx, args...)
}

// ExtractSegment copies a time window out of a normalized WAV into dest.
// Offsets and lengths are in seconds.
func (c *Client) ExtractSegment(ctx context.Context, source string, offsetSeconds, lengthSeconds float64, dest string) error {
	if strings.TrimSpace(source) == "" {
		return errors.New("ffmpeg extract: source path required")
	}
	if offsetSeconds < 0 || lengthSeconds <= 0 {
		return fmt.Errorf("ffmpeg extract: bad window %v+%v", offsetSeconds, lengthSeconds)
	}
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", formatSeconds(offsetSeconds),
		"-t", formatSeconds(lengthSeconds),
		"-i", source,
		"-c:a", "pcm_s16le",
		dest,
	}
	return c.run(ctx, args...)
}

func (c *Client) run(ctx context.Context, args ...string) error {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, c.binary, args...)
	}
	cmd := exec.CommandContext(ctx, c.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.binary, err, tail(string(output)))
	}
	return nil
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// tail keeps error output readable when ffmpeg dumps a long log.
func tail(output string) string {
	output = strings.TrimSpace(output)
	const keep = 800
	if len(output) <= keep {
		return output
	}
	return "..." + output[len(output)-keep:]
}
