package transcribe

import (
	"context"
	"fmt"
	"os"
	"time"

	"log/slog"

	"scribe/internal/chunker"
	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/workspace"
)

// Stitcher merges per-chunk transcripts into the whole-job outputs.
type Stitcher struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

// NewStitcher constructs the stitching handler.
func NewStitcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stitcher {
	return &Stitcher{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "stitcher"),
	}
}

// SetLogger rebinds the handler onto a per-job logger.
func (s *Stitcher) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "stitcher")
}

func (s *Stitcher) Prepare(ctx context.Context, job *queue.Job) error {
	if job.ChunkCount <= 0 {
		return services.Wrap(services.ErrValidation, "stitching", "check plan",
			"job has no chunk plan", nil)
	}
	job.ErrorMessage = ""
	return nil
}

func (s *Stitcher) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	chunkSeconds := pinnedChunkSeconds(s.cfg, job.WorkspaceDir)

	chunks := make([]chunker.ChunkTranscript, 0, job.ChunkCount)
	for index := 0; index < job.ChunkCount; index++ {
		base := chunker.Chunk{Index: index}.BaseName()
		prefix := workspace.ChunkPrefix(job.WorkspaceDir, base)
		if _, err := os.Stat(prefix + ".txt"); err != nil {
			return services.Wrap(services.ErrNotFound, "stitching", "collect chunks",
				fmt.Sprintf("chunk %s has no transcript", base), err)
		}
		chunks = append(chunks, chunker.ChunkTranscript{
			TextPath: prefix + ".txt",
			SRTPath:  prefix + ".srt",
			JSONPath: prefix + ".json",
			Offset:   time.Duration(index) * time.Duration(chunkSeconds) * time.Second,
		})
	}

	outPrefix := workspace.TranscriptPrefix(job.WorkspaceDir)
	if err := chunker.StitchText(chunks, outPrefix+".txt"); err != nil {
		return services.Wrap(nil, "stitching", "stitch text", "", err)
	}
	if err := chunker.StitchSRT(chunks, outPrefix+".srt"); err != nil {
		return services.Wrap(nil, "stitching", "stitch srt", "", err)
	}
	if err := chunker.StitchJSON(chunks, outPrefix+".json"); err != nil {
		return services.Wrap(nil, "stitching", "stitch json", "", err)
	}
	if err := fileutil.LinkOrCopy(outPrefix+".json", workspace.SegmentsPath(job.WorkspaceDir)); err != nil {
		return services.Wrap(nil, "stitching", "alias segments", "", err)
	}

	job.TranscriptFile = outPrefix + ".txt"
	logger.Info("transcripts stitched",
		logging.Int("chunks", job.ChunkCount),
		logging.String("transcript", job.TranscriptFile))
	return nil
}

// HealthCheck always passes: stitching needs no external tools.
func (s *Stitcher) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("stitcher")
}

var (
	_ stage.Handler     = (*Stitcher)(nil)
	_ stage.LoggerAware = (*Stitcher)(nil)
)
