package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"scribe/internal/fileutil"
	"scribe/internal/jobstate"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/workspace"
)

// transcriptExtensions are the engine output triple, published together.
var transcriptExtensions = []string{".txt", ".srt", ".json"}

// finalizeCompleted publishes the transcript triple into the done directory
// under the job identity and disposes of the workspace per configuration.
func (m *Manager) finalizeCompleted(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	if err := os.MkdirAll(m.cfg.Paths.DoneDir, 0o755); err != nil {
		return fmt.Errorf("create done dir: %w", err)
	}

	prefix := workspace.TranscriptPrefix(job.WorkspaceDir)
	published := ""
	for _, ext := range transcriptExtensions {
		src := prefix + ext
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dest := filepath.Join(m.cfg.Paths.DoneDir, job.Identity+ext)
		if err := fileutil.MoveFile(src, dest); err != nil {
			return fmt.Errorf("publish transcript: %w", err)
		}
		if ext == ".txt" {
			published = dest
		}
	}
	if published == "" {
		return fmt.Errorf("job %s completed without a text transcript", job.Identity)
	}
	job.TranscriptFile = published
	if err := m.store.Update(ctx, job); err != nil {
		return err
	}

	if m.cfg.Cleanup.RemoveWorkspaceOnSuccess {
		if m.cfg.Cleanup.KeepAudio {
			audio := workspace.AudioPath(job.WorkspaceDir)
			if _, err := os.Stat(audio); err == nil {
				dest := filepath.Join(m.cfg.Paths.DoneDir, job.Identity+".wav")
				if err := fileutil.MoveFile(audio, dest); err != nil {
					return fmt.Errorf("keep audio: %w", err)
				}
			}
		}
		if err := os.RemoveAll(job.WorkspaceDir); err != nil {
			logging.WithContext(ctx, logger).Warn("workspace cleanup failed",
				logging.String("workspace", job.WorkspaceDir), logging.Error(err))
		}
	} else if err := m.syncState(job, jobstate.Retry{}); err != nil {
		return err
	}

	logging.WithContext(ctx, logger).Info("job completed",
		logging.String("transcript", published))
	return nil
}

// failJob marks the job terminally failed and relocates its workspace into
// the failed directory for inspection. Returns nil: a failed job does not
// abort the run.
func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, job *queue.Job, current pipelineStage, cause error) error {
	job.SetFailed(cause.Error())
	if err := m.store.Update(ctx, job); err != nil {
		return err
	}
	if err := m.syncState(job, jobstate.Retry{
		Attempts:  job.Attempts,
		LastError: cause.Error(),
	}); err != nil {
		return err
	}

	logging.WithContext(ctx, logger).Error("job failed",
		logging.String(logging.FieldStage, current.name),
		logging.Int("attempts", job.Attempts+1),
		logging.String(logging.FieldErrorHint, "inspect job.log in the failed workspace, then 'scribe queue retry'"),
		logging.Error(cause))

	if err := m.relocateFailed(ctx, job); err != nil {
		logging.WithContext(ctx, logger).Warn("could not relocate failed workspace",
			logging.String("workspace", job.WorkspaceDir), logging.Error(err))
	}
	return nil
}

// relocateFailed moves the workspace under the failed directory. A stale
// directory from an earlier failure of the same identity is replaced, but a
// workspace already sitting at the target stays put: clearing the target
// first would destroy the job's own media.
func (m *Manager) relocateFailed(ctx context.Context, job *queue.Job) error {
	if err := os.MkdirAll(m.cfg.Paths.FailedDir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(m.cfg.Paths.FailedDir, job.Identity)
	if job.WorkspaceDir != target {
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		if err := os.Rename(job.WorkspaceDir, target); err != nil {
			return err
		}
	}
	job.WorkspaceDir = target
	job.JobLogPath = workspace.JobLogPath(target)
	return m.store.Update(ctx, job)
}

// reclaimWorkspace moves a workspace parked in the failed directory back under
// the work dir. 'scribe queue retry' resets only the catalog row, so a retried
// job still points into failed_dir; processing there would collide with the
// relocation a later failure performs.
func (m *Manager) reclaimWorkspace(ctx context.Context, job *queue.Job) error {
	parked := filepath.Join(m.cfg.Paths.FailedDir, job.Identity)
	if job.WorkspaceDir == "" || job.WorkspaceDir != parked {
		return nil
	}
	home := workspace.Dir(m.cfg, job.Identity)
	if err := os.MkdirAll(m.cfg.Paths.WorkDir, 0o755); err != nil {
		return err
	}
	if err := os.Rename(parked, home); err != nil {
		return fmt.Errorf("reclaim workspace: %w", err)
	}
	job.WorkspaceDir = home
	job.JobLogPath = workspace.JobLogPath(home)
	return m.store.Update(ctx, job)
}
