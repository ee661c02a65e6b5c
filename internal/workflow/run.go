package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/resource"
	"scribe/internal/stage"
)

// Summary reports what one batch run did.
type Summary struct {
	Enqueued  int
	Completed int
	Failed    int
	Reset     int64
}

// Run executes one full batch: lock, preflight, discovery, then drain every
// source category in priority order. The catalog and workspaces carry all
// state, so an aborted run loses nothing a later run cannot resume.
func (m *Manager) Run(ctx context.Context) (Summary, error) {
	summary := Summary{}

	if err := m.cfg.EnsureDirectories(); err != nil {
		return summary, fmt.Errorf("prepare directories: %w", err)
	}

	lock := flock.New(m.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return summary, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return summary, fmt.Errorf("another run holds %s", m.cfg.LockPath())
	}
	defer lock.Unlock()

	if err := m.runPreflight(ctx); err != nil {
		return summary, err
	}
	if err := m.gate.CheckDisk(m.cfg.Paths.WorkDir); err != nil {
		return summary, err
	}

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return summary, err
	}
	summary.Reset = reset
	if reset > 0 {
		m.logger.Info("rolled back interrupted jobs", logging.Int64("jobs", reset))
	}

	enqueued, err := m.discover(ctx)
	summary.Enqueued = enqueued
	if err != nil {
		return summary, err
	}

	for _, category := range m.priorityOrder() {
		for {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			job, err := m.store.NextInCategory(ctx, category)
			if err != nil {
				return summary, err
			}
			if job == nil {
				break
			}

			// Checked per job: a long transcription can eat the volume.
			if err := m.gate.CheckDisk(m.cfg.Paths.WorkDir); err != nil {
				m.logger.Error("aborting run on low disk", logging.Error(err))
				return summary, err
			}

			if err := m.processJob(ctx, job); err != nil {
				if errors.Is(err, resource.ErrDiskSpace) {
					m.logger.Error("aborting run on low disk", logging.Error(err))
				}
				return summary, err
			}
			switch job.Status {
			case queue.StatusCompleted:
				summary.Completed++
			case queue.StatusFailed:
				summary.Failed++
			}
		}
	}

	m.logger.Info("run finished",
		logging.Int("enqueued", summary.Enqueued),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed))
	return summary, nil
}

// priorityOrder returns the configured category drain order with a sane
// fallback. Unknown names are logged and skipped, not fatal.
func (m *Manager) priorityOrder() []string {
	if len(m.cfg.Sources.Priority) == 0 {
		return []string{queue.SourceLocal, queue.SourceURL}
	}
	order := make([]string, 0, len(m.cfg.Sources.Priority))
	for _, category := range m.cfg.Sources.Priority {
		switch category {
		case queue.SourceLocal, queue.SourceURL:
			order = append(order, category)
		default:
			m.logger.Warn("skipping unknown source category",
				logging.String("category", category))
		}
	}
	return order
}

// Handlers lists the stage handlers in pipeline order for health reporting.
func (m *Manager) Handlers() []stage.Handler {
	return []stage.Handler{
		m.stages.Ingest,
		m.stages.Convert,
		m.stages.Plan,
		m.stages.TranscribeChunks,
		m.stages.Stitch,
		m.stages.Transcribe,
	}
}
