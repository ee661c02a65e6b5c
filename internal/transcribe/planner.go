package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"log/slog"

	"scribe/internal/chunker"
	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media/ffmpeg"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/workspace"
)

// Planner splits long audio into fixed-length chunk WAVs.
type Planner struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	client *ffmpeg.Client
}

// NewPlanner constructs the chunking handler using default dependencies.
func NewPlanner(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Planner {
	return NewPlannerWithClient(cfg, store, logger, ffmpeg.NewClient(cfg.FFmpegBinary()))
}

// NewPlannerWithClient allows injecting the ffmpeg client (used in tests).
func NewPlannerWithClient(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *ffmpeg.Client) *Planner {
	return &Planner{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "chunk-planner"),
		client: client,
	}
}

// SetLogger rebinds the handler onto a per-job logger.
func (p *Planner) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "chunk-planner")
}

func (p *Planner) Prepare(ctx context.Context, job *queue.Job) error {
	if job.AudioFile == "" {
		job.AudioFile = workspace.AudioPath(job.WorkspaceDir)
	}
	if _, err := os.Stat(job.AudioFile); err != nil {
		return services.Wrap(services.ErrNotFound, "chunking", "locate audio",
			"workspace has no normalized audio", err)
	}
	if err := os.MkdirAll(workspace.ChunksDir(job.WorkspaceDir), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "chunking", "create chunk dir", "", err)
	}
	job.ErrorMessage = ""
	return nil
}

func (p *Planner) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, p.logger)

	plan, err := chunker.BuildPlan(job.DurationSeconds, pinnedChunkSeconds(p.cfg, job.WorkspaceDir))
	if err != nil {
		return services.Wrap(services.ErrValidation, "chunking", "build plan", "", err)
	}
	job.ChunkCount = plan.Count()
	logger.Info("chunk plan built",
		logging.Float64("duration_seconds", plan.DurationSeconds),
		logging.Int("chunk_seconds", plan.ChunkSeconds),
		logging.Int("chunks", plan.Count()))

	for _, chunk := range plan.Chunks {
		dest := workspace.ChunkPath(job.WorkspaceDir, chunk.BaseName())
		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			continue
		}

		extractCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.Timeouts.Convert)*time.Second)
		err := p.client.ExtractSegment(extractCtx, job.AudioFile, chunk.OffsetSeconds, chunk.LengthSeconds, dest)
		cancel()
		if err != nil {
			os.Remove(dest)
			if errors.Is(extractCtx.Err(), context.DeadlineExceeded) {
				return services.Wrap(services.ErrTimeout, "chunking", "extract segment",
					fmt.Sprintf("chunk %s exceeded its deadline", chunk.BaseName()), err)
			}
			return services.Wrap(services.ErrExternalTool, "chunking", "extract segment",
				fmt.Sprintf("chunk %s extraction failed", chunk.BaseName()), err)
		}
		logger.Info("chunk extracted",
			logging.String("chunk", chunk.BaseName()),
			logging.Float64("offset_seconds", chunk.OffsetSeconds),
			logging.Float64("length_seconds", chunk.LengthSeconds))
	}
	return nil
}

// HealthCheck verifies ffmpeg is available.
func (p *Planner) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(p.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy("chunk-planner", fmt.Sprintf("%s not found on PATH", p.cfg.FFmpegBinary()))
	}
	return stage.Healthy("chunk-planner")
}

var (
	_ stage.Handler     = (*Planner)(nil)
	_ stage.LoggerAware = (*Planner)(nil)
)
