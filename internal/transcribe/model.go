package transcribe

import (
	"scribe/internal/config"
	"scribe/internal/jobstate"
	"scribe/internal/media/whisper"
	"scribe/internal/queue"
	"scribe/internal/resource"
	"scribe/internal/services"
)

// memoryReader is swapped in tests.
type memoryReader func() (resource.MemorySample, error)

// resolveModel pins the job's model. Configured names pass through; "auto"
// runs the duration/RAM decision table once and the result sticks for every
// attempt, chunked or not.
func resolveModel(cfg *config.Config, job *queue.Job, readMemory memoryReader) (string, error) {
	if job.Model != "" {
		return job.Model, nil
	}
	configured := cfg.Transcription.Model
	if configured != "" && configured != "auto" {
		job.Model = configured
		return configured, nil
	}

	sample, err := readMemory()
	if err != nil {
		return "", services.Wrap(nil, "transcribing", "select model",
			"could not sample memory for model selection", err)
	}
	model := whisper.PickModel(job.DurationSeconds, sample.FreeRAMBytes)
	job.Model = model
	return model, nil
}

// language returns the engine language argument. "auto" maps to empty so the
// flag is omitted and the engine detects the language itself.
func language(cfg *config.Config) string {
	if cfg.Transcription.Language == "auto" {
		return ""
	}
	return cfg.Transcription.Language
}

// pinnedChunkSeconds returns the chunk length recorded in the workspace state,
// falling back to the configured value for records that predate the field.
// Extraction and stitch offsets must agree even if the configuration changed
// between runs.
func pinnedChunkSeconds(cfg *config.Config, workspaceDir string) int {
	if record, err := jobstate.Load(workspaceDir); err == nil && record.ChunkSeconds > 0 {
		return record.ChunkSeconds
	}
	return cfg.Transcription.ChunkSeconds
}
