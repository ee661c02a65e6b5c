package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"log/slog"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/media/whisper"
	"scribe/internal/queue"
	"scribe/internal/resource"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/workspace"
)

// Transcriber runs the engine over the whole audio file in one pass. Jobs
// short enough to skip chunking take this path.
type Transcriber struct {
	cfg        *config.Config
	store      *queue.Store
	logger     *slog.Logger
	client     *whisper.Client
	readMemory memoryReader
}

// NewTranscriber constructs the single-pass handler using default dependencies.
func NewTranscriber(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Transcriber {
	client := whisper.NewClient(cfg.WhisperBinary(), cfg.Transcription.ModelDir)
	return NewTranscriberWithDependencies(cfg, store, logger, client, resource.ReadMemory)
}

// NewTranscriberWithDependencies allows injecting collaborators (used in tests).
func NewTranscriberWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *whisper.Client, readMemory memoryReader) *Transcriber {
	return &Transcriber{
		cfg:        cfg,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "transcriber"),
		client:     client,
		readMemory: readMemory,
	}
}

// SetLogger rebinds the handler onto a per-job logger.
func (t *Transcriber) SetLogger(logger *slog.Logger) {
	t.logger = logging.NewComponentLogger(logger, "transcriber")
}

func (t *Transcriber) Prepare(ctx context.Context, job *queue.Job) error {
	if job.AudioFile == "" {
		job.AudioFile = workspace.AudioPath(job.WorkspaceDir)
	}
	if _, err := os.Stat(job.AudioFile); err != nil {
		return services.Wrap(services.ErrNotFound, "transcribing", "locate audio",
			"workspace has no normalized audio", err)
	}
	if _, err := resolveModel(t.cfg, job, t.readMemory); err != nil {
		return err
	}
	job.ErrorMessage = ""
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)
	prefix := workspace.TranscriptPrefix(job.WorkspaceDir)

	if _, err := os.Stat(prefix + ".txt"); err == nil {
		logger.Info("transcript already present, skipping engine run")
		job.TranscriptFile = prefix + ".txt"
		return aliasSegments(job)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(t.cfg.Timeouts.Transcribe)*time.Second)
	defer cancel()

	logger.Info("transcribing",
		logging.String("audio", job.AudioFile),
		logging.String("model", job.Model),
		logging.Float64("duration_seconds", job.DurationSeconds))
	outputs, err := t.client.Transcribe(runCtx, job.AudioFile, job.Model, language(t.cfg), prefix)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "transcribing", "run engine",
				"transcription exceeded its deadline", err)
		}
		return err
	}

	job.TranscriptFile = outputs.TextPath
	logger.Info("transcription finished", logging.String("transcript", outputs.TextPath))
	return aliasSegments(job)
}

// aliasSegments exposes the segment data under its stable name. Missing JSON
// output is tolerated; only the text file is required for success.
func aliasSegments(job *queue.Job) error {
	source := workspace.TranscriptPrefix(job.WorkspaceDir) + ".json"
	if _, err := os.Stat(source); err != nil {
		return nil
	}
	if err := fileutil.LinkOrCopy(source, workspace.SegmentsPath(job.WorkspaceDir)); err != nil {
		return services.Wrap(nil, "transcribing", "alias segments", "", err)
	}
	return nil
}

// HealthCheck verifies the engine binary is available.
func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(t.cfg.WhisperBinary()); err != nil {
		return stage.Unhealthy("transcriber", fmt.Sprintf("%s not found on PATH", t.cfg.WhisperBinary()))
	}
	return stage.Healthy("transcriber")
}

var (
	_ stage.Handler     = (*Transcriber)(nil)
	_ stage.LoggerAware = (*Transcriber)(nil)
)
