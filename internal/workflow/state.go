package workflow

import (
	"path/filepath"
	"strings"

	"scribe/internal/chunker"
	"scribe/internal/jobstate"
	"scribe/internal/queue"
)

// syncState mirrors the catalog row into the workspace state record. The
// record is authoritative across runs, so it is rewritten at every stage
// boundary and retry decision.
func (m *Manager) syncState(job *queue.Job, retry jobstate.Retry) error {
	record, err := jobstate.Load(job.WorkspaceDir)
	if err != nil {
		record = jobstate.New(job.Identity, job.Title, job.SourceCategory, job.SourcePath)
		record.ChunkSeconds = m.cfg.Transcription.ChunkSeconds
		record.Language = m.cfg.Transcription.Language
	}

	record.Title = job.Title
	record.SourceCategory = job.SourceCategory
	record.SourcePath = job.SourcePath
	record.Status = string(job.Status)
	record.DurationSeconds = job.DurationSeconds
	record.ChunkCount = job.ChunkCount
	record.Model = job.Model
	record.CorrelationID = job.CorrelationID
	record.Retry = retry
	record.Artifacts = m.artifactsFor(job)

	return jobstate.Save(job.WorkspaceDir, record)
}

// artifactsFor lists workspace-relative artifact paths for the record.
func (m *Manager) artifactsFor(job *queue.Job) jobstate.Artifacts {
	artifacts := jobstate.Artifacts{
		Input:      workspaceRel(job.WorkspaceDir, job.InputFile),
		Audio:      workspaceRel(job.WorkspaceDir, job.AudioFile),
		Transcript: workspaceRel(job.WorkspaceDir, job.TranscriptFile),
	}
	for index := 0; index < job.ChunkCount; index++ {
		base := chunker.Chunk{Index: index}.BaseName()
		artifacts.Chunks = append(artifacts.Chunks, filepath.Join("chunks", base+".wav"))
	}
	return artifacts
}

// workspaceRel keeps record paths relative so a relocated workspace stays
// self-describing. Paths outside the workspace are recorded as-is.
func workspaceRel(dir, path string) string {
	if dir == "" || path == "" {
		return ""
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
