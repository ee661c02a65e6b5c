// Package jobstate persists the authoritative per-workspace state record.
//
// Every workspace carries a state.json describing the job's stage, retry
// envelope, and artifact paths. The record is what a later run trusts when it
// resumes an interrupted workspace; the catalog row only mirrors it. Writes
// are atomic (temp file then rename) so a crash never leaves a half-written
// record behind.
package jobstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Version is the current state record schema version. Older versions are
// migrated on read; newer versions are rejected.
const Version = 1

// FileName is the record's name inside a workspace.
const FileName = "state.json"

// ErrFutureVersion indicates a record written by a newer build.
var ErrFutureVersion = errors.New("state record version is newer than this build")

// Retry is the persisted retry envelope for the job's current stage.
type Retry struct {
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	NextAttempt time.Time `json:"next_attempt,omitempty"`
}

// Artifacts records the workspace-relative outputs produced so far.
type Artifacts struct {
	Input      string   `json:"input,omitempty"`
	Audio      string   `json:"audio,omitempty"`
	Chunks     []string `json:"chunks,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
}

// Record is the versioned on-disk job state.
type Record struct {
	Version         int       `json:"version"`
	Identity        string    `json:"identity"`
	Title           string    `json:"title,omitempty"`
	SourceCategory  string    `json:"source_category"`
	SourcePath      string    `json:"source_path"`
	Status          string    `json:"status"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	ChunkSeconds    int       `json:"chunk_seconds,omitempty"`
	ChunkCount      int       `json:"chunk_count,omitempty"`
	Model           string    `json:"model,omitempty"`
	Language        string    `json:"language,omitempty"`
	CorrelationID   string    `json:"correlation_id,omitempty"`
	Retry           Retry     `json:"retry"`
	Artifacts       Artifacts `json:"artifacts"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// New returns a fresh record for a discovered source.
func New(identity, title, category, sourcePath string) *Record {
	now := time.Now().UTC()
	return &Record{
		Version:        Version,
		Identity:       identity,
		Title:          title,
		SourceCategory: category,
		SourcePath:     sourcePath,
		Status:         "discovered",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Path returns the record location for a workspace directory.
func Path(workspaceDir string) string {
	return filepath.Join(workspaceDir, FileName)
}

// Save writes the record atomically into the workspace.
func Save(workspaceDir string, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.Version = Version
	record.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state record: %w", err)
	}
	data = append(data, '\n')

	target := Path(workspaceDir)
	tmp, err := os.CreateTemp(workspaceDir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state record: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("replace state record: %w", err)
	}
	return nil
}

// Load reads the record from a workspace. A missing file returns
// fs.ErrNotExist; callers that hold artifacts may fall back to Recover.
func Load(workspaceDir string) (*Record, error) {
	data, err := os.ReadFile(Path(workspaceDir))
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse state record: %w", err)
	}
	if record.Version > Version {
		return nil, fmt.Errorf("%w: record has version %d, build supports %d", ErrFutureVersion, record.Version, Version)
	}
	if record.Version < Version {
		migrate(&record)
	}
	return &record, nil
}

// migrate upgrades older records in place. Version 0 records predate the
// version field and need only the field stamped.
func migrate(record *Record) {
	record.Version = Version
}

// Recover reconstructs a conservative record from workspace artifacts when
// state.json is missing or unreadable. The job restarts at the earliest stage
// consistent with the files present; finished chunk transcripts are kept.
func Recover(workspaceDir, identity string) (*Record, error) {
	entries, err := os.ReadDir(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}

	record := New(identity, "", "local", "")
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case name == FileName:
		case name == "audio.wav":
			record.Artifacts.Audio = name
			record.Status = "audio_ready"
		case len(name) > 6 && name[:6] == "input.":
			record.Artifacts.Input = name
			if record.Status == "discovered" {
				record.Status = "input_copied"
			}
		}
	}

	chunkDir := filepath.Join(workspaceDir, "chunks")
	if chunkEntries, err := os.ReadDir(chunkDir); err == nil && len(chunkEntries) > 0 && record.Artifacts.Audio != "" {
		record.Status = "chunked"
		for _, entry := range chunkEntries {
			if filepath.Ext(entry.Name()) == ".wav" {
				record.Artifacts.Chunks = append(record.Artifacts.Chunks, filepath.Join("chunks", entry.Name()))
			}
		}
		record.ChunkCount = len(record.Artifacts.Chunks)
	} else if !errors.Is(err, fs.ErrNotExist) && err != nil {
		return nil, fmt.Errorf("read chunk dir: %w", err)
	}

	if _, err := os.Stat(filepath.Join(workspaceDir, "transcript.txt")); err == nil {
		record.Artifacts.Transcript = "transcript.txt"
		record.Status = "completed"
	}

	return record, nil
}

// LoadOrRecover loads the record, falling back to artifact recovery when the
// record is missing or corrupt. Future-version records are not recovered
// over; they are an operator problem.
func LoadOrRecover(workspaceDir, identity string) (*Record, error) {
	record, err := Load(workspaceDir)
	if err == nil {
		return record, nil
	}
	if errors.Is(err, ErrFutureVersion) {
		return nil, err
	}
	return Recover(workspaceDir, identity)
}
