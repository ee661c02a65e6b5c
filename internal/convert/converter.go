// Package convert normalizes ingested media into engine-ready audio.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"log/slog"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media/ffmpeg"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/workspace"
)

// Converter turns input.<ext> into mono 16 kHz audio.wav via ffmpeg.
type Converter struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	client *ffmpeg.Client
}

// NewConverter constructs the conversion handler using default dependencies.
func NewConverter(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Converter {
	return NewConverterWithClient(cfg, store, logger, ffmpeg.NewClient(cfg.FFmpegBinary()))
}

// NewConverterWithClient allows injecting the ffmpeg client (used in tests).
func NewConverterWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *ffmpeg.Client) *Converter {
	return &Converter{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "converter"),
		client: client,
	}
}

// SetLogger rebinds the handler onto a per-job logger.
func (c *Converter) SetLogger(logger *slog.Logger) {
	c.logger = logging.NewComponentLogger(logger, "converter")
}

func (c *Converter) Prepare(ctx context.Context, job *queue.Job) error {
	if job.InputFile == "" {
		input, err := workspace.FindInput(job.WorkspaceDir)
		if err != nil {
			return services.Wrap(services.ErrNotFound, "converting", "locate input",
				"workspace has no ingested input", err)
		}
		job.InputFile = input
	}
	job.ErrorMessage = ""
	return nil
}

func (c *Converter) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, c.logger)
	audioPath := workspace.AudioPath(job.WorkspaceDir)

	// Re-runs after a crash reuse the finished artifact.
	if info, err := os.Stat(audioPath); err == nil && info.Size() > 0 {
		logger.Info("audio already normalized, skipping conversion",
			logging.String("audio", audioPath))
		job.AudioFile = audioPath
		return nil
	}

	convertCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Timeouts.Convert)*time.Second)
	defer cancel()

	logger.Info("normalizing audio",
		logging.String("input", job.InputFile),
		logging.String("filter", c.cfg.Engines.AudioFilter))
	if err := c.client.Normalize(convertCtx, job.InputFile, c.cfg.Engines.AudioFilter, audioPath); err != nil {
		// A half-written WAV must not satisfy the re-run check above.
		os.Remove(audioPath)
		if errors.Is(convertCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "converting", "run ffmpeg",
				"audio normalization exceeded its deadline", err)
		}
		return services.Wrap(services.ErrExternalTool, "converting", "run ffmpeg",
			"audio normalization failed", err)
	}

	job.AudioFile = audioPath
	logger.Info("audio normalized", logging.String("audio", audioPath))
	return nil
}

// HealthCheck verifies ffmpeg is available.
func (c *Converter) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(c.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy("converter", fmt.Sprintf("%s not found on PATH", c.cfg.FFmpegBinary()))
	}
	return stage.Healthy("converter")
}

var (
	_ stage.Handler     = (*Converter)(nil)
	_ stage.LoggerAware = (*Converter)(nil)
)
