package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusDiscovered         Status = "discovered"
	StatusIngesting          Status = "ingesting"
	StatusInputCopied        Status = "input_copied"
	StatusConverting         Status = "converting"
	StatusAudioReady         Status = "audio_ready"
	StatusChunking           Status = "chunking"
	StatusChunked            Status = "chunked"
	StatusTranscribingChunks Status = "transcribing_chunks"
	StatusChunksTranscribed  Status = "chunks_transcribed"
	StatusStitching          Status = "stitching"
	StatusTranscribing       Status = "transcribing"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
)

// Source categories recognized by discovery.
const (
	SourceLocal = "local"
	SourceURL   = "url"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusIngesting,
	StatusInputCopied,
	StatusConverting,
	StatusAudioReady,
	StatusChunking,
	StatusChunked,
	StatusTranscribingChunks,
	StatusChunksTranscribed,
	StatusStitching,
	StatusTranscribing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusIngesting:          {},
	StatusConverting:         {},
	StatusChunking:           {},
	StatusTranscribingChunks: {},
	StatusStitching:          {},
	StatusTranscribing:       {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map an interrupted processing status back to the
// stage's start status so a new run re-executes the stage from its artifacts.
var stageRollbackTransitions = []statusTransition{
	{from: StatusIngesting, to: StatusDiscovered},
	{from: StatusConverting, to: StatusInputCopied},
	{from: StatusChunking, to: StatusAudioReady},
	{from: StatusTranscribingChunks, to: StatusChunked},
	{from: StatusStitching, to: StatusChunksTranscribed},
	{from: StatusTranscribing, to: StatusAudioReady},
}

// RollbackStatus maps an interrupted processing status back to its stage
// start status. Non-processing statuses map to themselves.
func RollbackStatus(status Status) Status {
	for _, transition := range stageRollbackTransitions {
		if transition.from == status {
			return transition.to
		}
	}
	return status
}

// HealthSummary describes aggregated catalog counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Job represents a transcription job persisted in the catalog.
type Job struct {
	ID              int64
	Identity        string
	Title           string
	SourceCategory  string
	SourcePath      string
	Status          Status
	WorkspaceDir    string
	InputFile       string
	AudioFile       string
	TranscriptFile  string
	DurationSeconds float64
	ChunkCount      int
	Model           string
	Attempts        int
	CorrelationID   string
	JobLogPath      string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	return IsProcessingStatus(j.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status admits no further stage work.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Chunked reports whether the job took the chunked transcription branch.
func (j Job) Chunked() bool {
	return j.ChunkCount > 0
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
}
