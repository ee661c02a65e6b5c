package workflow

import (
	"log/slog"

	"scribe/internal/config"
	"scribe/internal/convert"
	"scribe/internal/ingest"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/resource"
	"scribe/internal/retrypolicy"
	"scribe/internal/stage"
	"scribe/internal/transcribe"
)

// pipelineStage binds a start status to its handler and the statuses the
// driver moves through around execution. Gated stages wait on the memory
// gate before starting.
type pipelineStage struct {
	name       string
	handler    stage.Handler
	processing queue.Status
	done       queue.Status
	gated      bool
}

// StageSet carries the pipeline's stage handlers. Tests substitute handlers
// with stubbed collaborators.
type StageSet struct {
	Ingest           stage.Handler
	Convert          stage.Handler
	Plan             stage.Handler
	TranscribeChunks stage.Handler
	Stitch           stage.Handler
	Transcribe       stage.Handler
}

// DefaultStageSet builds the production handlers.
func DefaultStageSet(cfg *config.Config, store *queue.Store, logger *slog.Logger) StageSet {
	return StageSet{
		Ingest:           ingest.NewIngester(cfg, store, logger),
		Convert:          convert.NewConverter(cfg, store, logger),
		Plan:             transcribe.NewPlanner(cfg, store, logger),
		TranscribeChunks: transcribe.NewChunkTranscriber(cfg, store, logger),
		Stitch:           transcribe.NewStitcher(cfg, store, logger),
		Transcribe:       transcribe.NewTranscriber(cfg, store, logger),
	}
}

// Manager owns a single batch run of the pipeline.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	stages StageSet
	gate   *resource.Gate
	policy retrypolicy.Policy
}

// NewManager constructs a manager with production stage handlers.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithStages(cfg, store, logger, DefaultStageSet(cfg, store, logger))
}

// NewManagerWithStages allows injecting stage handlers (used in tests).
func NewManagerWithStages(cfg *config.Config, store *queue.Store, logger *slog.Logger, stages StageSet) *Manager {
	return &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "workflow"),
		stages: stages,
		gate:   resource.NewGate(cfg, logger),
		policy: retrypolicy.FromConfig(cfg),
	}
}

// stageForStatus resolves the stage a job must run next from its start
// status. Jobs at audio_ready branch on duration: anything longer than the
// chunk threshold takes the chunked path, everything else transcribes in a
// single pass.
func (m *Manager) stageForStatus(job *queue.Job) (pipelineStage, bool) {
	switch job.Status {
	case queue.StatusDiscovered:
		return pipelineStage{
			name:       "ingest",
			handler:    m.stages.Ingest,
			processing: queue.StatusIngesting,
			done:       queue.StatusInputCopied,
		}, true
	case queue.StatusInputCopied:
		return pipelineStage{
			name:       "convert",
			handler:    m.stages.Convert,
			processing: queue.StatusConverting,
			done:       queue.StatusAudioReady,
			gated:      true,
		}, true
	case queue.StatusAudioReady:
		if job.DurationSeconds > float64(m.cfg.Transcription.ChunkSeconds) {
			return pipelineStage{
				name:       "chunk",
				handler:    m.stages.Plan,
				processing: queue.StatusChunking,
				done:       queue.StatusChunked,
			}, true
		}
		return pipelineStage{
			name:       "transcribe",
			handler:    m.stages.Transcribe,
			processing: queue.StatusTranscribing,
			done:       queue.StatusCompleted,
			gated:      true,
		}, true
	case queue.StatusChunked:
		return pipelineStage{
			name:       "transcribe-chunks",
			handler:    m.stages.TranscribeChunks,
			processing: queue.StatusTranscribingChunks,
			done:       queue.StatusChunksTranscribed,
			gated:      true,
		}, true
	case queue.StatusChunksTranscribed:
		return pipelineStage{
			name:       "stitch",
			handler:    m.stages.Stitch,
			processing: queue.StatusStitching,
			done:       queue.StatusCompleted,
		}, true
	default:
		return pipelineStage{}, false
	}
}
