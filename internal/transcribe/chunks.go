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
	"scribe/internal/media/whisper"
	"scribe/internal/queue"
	"scribe/internal/resource"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/workspace"
)

// ChunkTranscriber runs the engine over every chunk WAV, resuming past
// chunks that already have a text output.
type ChunkTranscriber struct {
	cfg        *config.Config
	store      *queue.Store
	logger     *slog.Logger
	client     *whisper.Client
	readMemory memoryReader
}

// NewChunkTranscriber constructs the handler using default dependencies.
func NewChunkTranscriber(cfg *config.Config, store *queue.Store, logger *slog.Logger) *ChunkTranscriber {
	client := whisper.NewClient(cfg.WhisperBinary(), cfg.Transcription.ModelDir)
	return NewChunkTranscriberWithDependencies(cfg, store, logger, client, resource.ReadMemory)
}

// NewChunkTranscriberWithDependencies allows injecting collaborators (used in tests).
func NewChunkTranscriberWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client *whisper.Client, readMemory memoryReader) *ChunkTranscriber {
	return &ChunkTranscriber{
		cfg:        cfg,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "chunk-transcriber"),
		client:     client,
		readMemory: readMemory,
	}
}

// SetLogger rebinds the handler onto a per-job logger.
func (t *ChunkTranscriber) SetLogger(logger *slog.Logger) {
	t.logger = logging.NewComponentLogger(logger, "chunk-transcriber")
}

func (t *ChunkTranscriber) Prepare(ctx context.Context, job *queue.Job) error {
	if job.ChunkCount <= 0 {
		return services.Wrap(services.ErrValidation, "transcribing_chunks", "check plan",
			"job has no chunk plan", nil)
	}
	if _, err := resolveModel(t.cfg, job, t.readMemory); err != nil {
		return err
	}
	job.ErrorMessage = ""
	return nil
}

func (t *ChunkTranscriber) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, t.logger)

	for index := 0; index < job.ChunkCount; index++ {
		chunk := chunker.Chunk{Index: index}
		wavPath := workspace.ChunkPath(job.WorkspaceDir, chunk.BaseName())
		prefix := workspace.ChunkPrefix(job.WorkspaceDir, chunk.BaseName())

		if info, err := os.Stat(prefix + ".txt"); err == nil && info.Size() > 0 {
			logger.Info("chunk already transcribed, skipping",
				logging.String("chunk", chunk.BaseName()))
			continue
		}
		if _, err := os.Stat(wavPath); err != nil {
			return services.Wrap(services.ErrNotFound, "transcribing_chunks", "locate chunk",
				fmt.Sprintf("chunk %s WAV missing", chunk.BaseName()), err)
		}

		runCtx, cancel := context.WithTimeout(ctx, time.Duration(t.cfg.Timeouts.Transcribe)*time.Second)
		outputs, err := t.client.Transcribe(runCtx, wavPath, job.Model, language(t.cfg), prefix)
		cancel()
		if err != nil {
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return services.Wrap(services.ErrTimeout, "transcribing_chunks", "run engine",
					fmt.Sprintf("chunk %s exceeded its deadline", chunk.BaseName()), err)
			}
			return services.Wrap(services.ErrExternalTool, "transcribing_chunks", "run engine",
				fmt.Sprintf("chunk %s transcription failed", chunk.BaseName()), err)
		}
		// An empty text output means the engine produced nothing usable.
		if info, err := os.Stat(outputs.TextPath); err != nil || info.Size() == 0 {
			return services.Wrap(services.ErrExternalTool, "transcribing_chunks", "run engine",
				fmt.Sprintf("chunk %s produced an empty transcript", chunk.BaseName()), err)
		}
		if t.cfg.Cleanup.RemoveChunkWAVs {
			if err := os.Remove(wavPath); err != nil {
				logger.Warn("could not remove chunk media",
					logging.String("chunk", chunk.BaseName()), logging.Error(err))
			}
		}
		logger.Info("chunk transcribed",
			logging.String("chunk", chunk.BaseName()),
			logging.String("model", job.Model))
	}
	return nil
}

// HealthCheck verifies the engine binary is available.
func (t *ChunkTranscriber) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(t.cfg.WhisperBinary()); err != nil {
		return stage.Unhealthy("chunk-transcriber", fmt.Sprintf("%s not found on PATH", t.cfg.WhisperBinary()))
	}
	return stage.Healthy("chunk-transcriber")
}

var (
	_ stage.Handler     = (*ChunkTranscriber)(nil)
	_ stage.LoggerAware = (*ChunkTranscriber)(nil)
)
