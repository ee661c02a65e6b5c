package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"scribe/internal/jobstate"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/resource"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/workspace"
)

// processJob walks one job through the stage machine until it reaches a
// terminal status. Stage failures consume the retry budget; an exhausted
// budget or a non-retryable error fails the job without aborting the run.
// Only run-level conditions (cancellation, disk exhaustion, catalog loss)
// return an error.
func (m *Manager) processJob(ctx context.Context, job *queue.Job) error {
	if err := m.reclaimWorkspace(ctx, job); err != nil {
		return err
	}
	if job.WorkspaceDir == "" {
		job.WorkspaceDir = workspace.Dir(m.cfg, job.Identity)
	}
	if job.JobLogPath == "" {
		job.JobLogPath = workspace.JobLogPath(job.WorkspaceDir)
	}

	jobLog, err := logging.OpenJobLog(job.JobLogPath, m.cfg.Logging.Level, m.logger)
	if err != nil {
		return fmt.Errorf("open job log: %w", err)
	}
	defer jobLog.Close()
	logger := logging.NewComponentLogger(jobLog.Logger, "workflow")

	jobCtx := services.WithJobID(ctx, job.Identity)
	logging.WithContext(jobCtx, logger).Info("job starting",
		logging.String("status", string(job.Status)),
		logging.String(logging.FieldSource, job.SourceCategory))

	for !job.Status.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		current, ok := m.stageForStatus(job)
		if !ok {
			return fmt.Errorf("no stage handles status %s", job.Status)
		}

		stageErr := m.runStage(jobCtx, jobLog.Logger, job, current)
		if stageErr == nil {
			job.Attempts = 0
			continue
		}
		if errors.Is(stageErr, context.Canceled) || errors.Is(stageErr, resource.ErrDiskSpace) {
			return stageErr
		}

		decision := m.policy.Next(job.Attempts, stageErr)
		if !decision.Retry {
			return m.failJob(jobCtx, logger, job, current, stageErr)
		}

		job.Attempts++
		job.Status = queue.RollbackStatus(current.processing)
		job.ErrorMessage = stageErr.Error()
		if err := m.store.Update(ctx, job); err != nil {
			return err
		}
		nextAttempt := time.Now().UTC().Add(decision.Delay)
		if err := m.syncState(job, jobstate.Retry{
			Attempts:    job.Attempts,
			LastError:   stageErr.Error(),
			NextAttempt: nextAttempt,
		}); err != nil {
			return err
		}

		logging.WithContext(jobCtx, logger).Warn("stage failed, retrying",
			logging.String(logging.FieldStage, current.name),
			logging.Int("attempt", job.Attempts),
			logging.Duration("delay", decision.Delay),
			logging.Error(stageErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(decision.Delay):
		}
	}

	if job.Status == queue.StatusCompleted {
		return m.finalizeCompleted(jobCtx, logger, job)
	}
	return nil
}

// runStage executes one stage attempt: gate, transition to the processing
// status, Prepare, Execute, then the done status. The state record is saved
// on both sides so a crash mid-stage rolls back to finished artifacts.
func (m *Manager) runStage(ctx context.Context, base *slog.Logger, job *queue.Job, current pipelineStage) error {
	job.CorrelationID = uuid.NewString()
	stageCtx := services.WithStage(ctx, current.name)
	stageCtx = services.WithRequestID(stageCtx, job.CorrelationID)
	stageLogger := logging.WithContext(stageCtx, logging.NewComponentLogger(base, "workflow"))

	// Handlers receive the raw per-job logger and tag their own component.
	if aware, ok := current.handler.(stage.LoggerAware); ok {
		aware.SetLogger(base)
	}

	if current.gated {
		if err := m.gate.WaitForMemory(stageCtx); err != nil {
			return err
		}
	}

	started := time.Now()
	job.Status = current.processing
	if err := m.store.Update(ctx, job); err != nil {
		return err
	}
	if err := m.syncState(job, jobstate.Retry{Attempts: job.Attempts}); err != nil {
		return err
	}
	stageLogger.Info("stage starting")

	if err := current.handler.Prepare(stageCtx, job); err != nil {
		return err
	}
	if err := m.store.Update(ctx, job); err != nil {
		return err
	}
	if err := current.handler.Execute(stageCtx, job); err != nil {
		return err
	}

	job.Status = current.done
	job.ErrorMessage = ""
	if err := m.store.Update(ctx, job); err != nil {
		return err
	}
	if err := m.syncState(job, jobstate.Retry{}); err != nil {
		return err
	}
	stageLogger.Info("stage finished",
		logging.String("status", string(job.Status)),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	return nil
}
