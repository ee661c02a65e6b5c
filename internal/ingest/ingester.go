// Package ingest brings a discovered source into its workspace and probes it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"log/slog"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/media/download"
	"scribe/internal/media/ffprobe"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/workspace"
)

// Prober inspects media; swapped in tests.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Ingester copies or downloads the source into the workspace, then probes
// duration and audio presence.
type Ingester struct {
	cfg        *config.Config
	store      *queue.Store
	logger     *slog.Logger
	downloader *download.Client
	probe      Prober
}

// NewIngester constructs the ingest handler using default dependencies.
func NewIngester(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Ingester {
	return NewIngesterWithDependencies(cfg, store, logger, download.NewClient(cfg.DownloaderBinary()), ffprobe.Inspect)
}

// NewIngesterWithDependencies allows injecting collaborators (used in tests).
func NewIngesterWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, downloader *download.Client, probe Prober) *Ingester {
	return &Ingester{
		cfg:        cfg,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "ingester"),
		downloader: downloader,
		probe:      probe,
	}
}

// SetLogger rebinds the handler onto a per-job logger.
func (i *Ingester) SetLogger(logger *slog.Logger) {
	i.logger = logging.NewComponentLogger(logger, "ingester")
}

func (i *Ingester) Prepare(ctx context.Context, job *queue.Job) error {
	if job.WorkspaceDir == "" {
		job.WorkspaceDir = workspace.Dir(i.cfg, job.Identity)
	}
	if err := os.MkdirAll(job.WorkspaceDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "ingesting", "create workspace",
			"failed to create workspace directory; check work_dir permissions", err)
	}
	job.ErrorMessage = ""
	return nil
}

func (i *Ingester) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, i.logger)

	inputPath, err := workspace.FindInput(job.WorkspaceDir)
	switch {
	case err == nil:
		logger.Info("input already present, skipping acquisition",
			logging.String("input", inputPath))
	case errors.Is(err, os.ErrNotExist):
		inputPath, err = i.acquire(ctx, job, logger)
		if err != nil {
			return err
		}
	default:
		return services.Wrap(nil, "ingesting", "scan workspace", "", err)
	}
	job.InputFile = inputPath

	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(i.cfg.Timeouts.Probe)*time.Second)
	defer cancel()
	result, err := i.probe(probeCtx, i.cfg.FFprobeBinary(), inputPath)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "ingesting", "probe input",
				"ffprobe exceeded its deadline", err)
		}
		return services.Wrap(services.ErrExternalTool, "ingesting", "probe input",
			"ffprobe could not read the input", err)
	}

	if !result.HasAudio() {
		return services.Wrap(services.ErrValidation, "ingesting", "probe input",
			"input has no audio stream", nil)
	}
	// Whole seconds, rounded up: the chunk plan and the duration gate both
	// work on second granularity.
	duration := math.Ceil(result.DurationSeconds())
	if duration <= 0 {
		return services.Wrap(services.ErrValidation, "ingesting", "probe input",
			"input has no detectable duration", nil)
	}
	if limit := i.cfg.Transcription.MaxDurationSeconds; limit > 0 && duration > float64(limit) {
		return services.Wrap(services.ErrValidation, "ingesting", "probe input",
			fmt.Sprintf("input runs %.0fs, longer than the %ds limit", duration, limit), nil)
	}
	job.DurationSeconds = duration

	logger.Info("input ingested",
		logging.String("input", inputPath),
		logging.Float64("duration_seconds", duration),
		logging.Bool("will_chunk", duration > float64(i.cfg.Transcription.ChunkSeconds)))
	return nil
}

func (i *Ingester) acquire(ctx context.Context, job *queue.Job, logger *slog.Logger) (string, error) {
	switch job.SourceCategory {
	case queue.SourceLocal:
		return i.acquireLocal(job, logger)
	case queue.SourceURL:
		return i.acquireURL(ctx, job, logger)
	default:
		return "", services.Wrap(services.ErrValidation, "ingesting", "acquire source",
			fmt.Sprintf("unknown source category %q", job.SourceCategory), nil)
	}
}

// acquireLocal consumes the queued file: it moves into the workspace so the
// queue directory drains as jobs progress.
func (i *Ingester) acquireLocal(job *queue.Job, logger *slog.Logger) (string, error) {
	if _, err := os.Stat(job.SourcePath); err != nil {
		return "", services.Wrap(services.ErrNotFound, "ingesting", "acquire source",
			"queued file disappeared before ingest", err)
	}
	dest := workspace.InputPath(job.WorkspaceDir, filepath.Ext(job.SourcePath))
	if err := fileutil.MoveFile(job.SourcePath, dest); err != nil {
		return "", services.Wrap(nil, "ingesting", "acquire source",
			"failed to move queued file into workspace", err)
	}
	logger.Info("moved queued file into workspace",
		logging.String("source", job.SourcePath),
		logging.String("input", dest))
	return dest, nil
}

func (i *Ingester) acquireURL(ctx context.Context, job *queue.Job, logger *slog.Logger) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(i.cfg.Timeouts.Download)*time.Second)
	defer cancel()
	path, err := i.downloader.Fetch(fetchCtx, job.SourcePath, job.WorkspaceDir)
	if err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "ingesting", "download source",
				"downloader exceeded its deadline", err)
		}
		return "", err
	}
	logger.Info("downloaded source",
		logging.String("url", job.SourcePath),
		logging.String("input", path))
	return path, nil
}

// HealthCheck verifies the downloader and probe binaries are available.
func (i *Ingester) HealthCheck(ctx context.Context) stage.Health {
	for _, binary := range []string{i.cfg.FFprobeBinary(), i.cfg.DownloaderBinary()} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy("ingester", fmt.Sprintf("%s not found on PATH", binary))
		}
	}
	return stage.Healthy("ingester")
}

var (
	_ stage.Handler     = (*Ingester)(nil)
	_ stage.LoggerAware = (*Ingester)(nil)
)
