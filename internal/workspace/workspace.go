// Package workspace defines the on-disk layout of a job workspace.
//
// A workspace is a single directory under the work dir named after the job
// identity. Stages communicate through well-known file names inside it:
//
//	state.json        authoritative job state record
//	job.log           per-job log
//	input.<ext>       ingested source media
//	audio.wav         normalized mono 16 kHz audio
//	chunks/           chunk WAVs and per-chunk transcripts
//	transcript.txt    stitched or single-pass text output
//	transcript.srt    subtitle output
//	transcript.json   timed segment output
//	segments.json     hard-linked alias of transcript.json
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/config"
)

// Dir returns the workspace directory for a job identity.
func Dir(cfg *config.Config, identity string) string {
	return filepath.Join(cfg.Paths.WorkDir, identity)
}

// InputPath returns the ingested input location for a source extension.
func InputPath(dir, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return filepath.Join(dir, "input."+ext)
}

// FindInput locates the ingested input file, whatever its extension.
func FindInput(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "input.*"))
	if err != nil {
		return "", fmt.Errorf("scan workspace: %w", err)
	}
	for _, match := range matches {
		if filepath.Ext(match) == ".part" {
			continue
		}
		return match, nil
	}
	return "", os.ErrNotExist
}

// AudioPath returns the normalized audio location.
func AudioPath(dir string) string {
	return filepath.Join(dir, "audio.wav")
}

// ChunksDir returns the chunk artifact directory.
func ChunksDir(dir string) string {
	return filepath.Join(dir, "chunks")
}

// ChunkPath returns the WAV path for a chunk base name.
func ChunkPath(dir, baseName string) string {
	return filepath.Join(ChunksDir(dir), baseName+".wav")
}

// ChunkPrefix returns the engine output prefix for a chunk base name.
func ChunkPrefix(dir, baseName string) string {
	return filepath.Join(ChunksDir(dir), baseName)
}

// TranscriptPrefix returns the whole-job output prefix; the engine and the
// stitcher both write transcript.{txt,srt,json} from it.
func TranscriptPrefix(dir string) string {
	return filepath.Join(dir, "transcript")
}

// SegmentsPath returns the aliased segment-data location. Downstream keyword
// extraction reads it without caring whether the job was chunked.
func SegmentsPath(dir string) string {
	return filepath.Join(dir, "segments.json")
}

// JobLogPath returns the per-job log location.
func JobLogPath(dir string) string {
	return filepath.Join(dir, "job.log")
}
