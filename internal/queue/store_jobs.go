package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewJob inserts a discovered job for a source.
func (s *Store) NewJob(ctx context.Context, identity, title, category, sourcePath string) (*Job, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            identity, title, source_category, source_path, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		identity,
		title,
		category,
		sourcePath,
		StatusDiscovered,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindActiveByIdentity returns the first non-terminal job matching an
// identity. At most one active workspace exists per identity; discovery uses
// this lookup to resume instead of enqueueing a duplicate.
func (s *Store) FindActiveByIdentity(ctx context.Context, identity string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE identity = ? AND status NOT IN (?, ?) ORDER BY id LIMIT 1`,
		identity,
		StatusCompleted,
		StatusFailed,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by identity: %w", err)
	}
	return job, nil
}

// FindActiveBySource returns the first non-terminal job for a source within a
// category. Discovery uses this lookup so a source already queued resumes
// instead of enqueueing a duplicate under a fresh identity.
func (s *Store) FindActiveBySource(ctx context.Context, category, sourcePath string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE source_category = ? AND source_path = ? AND status NOT IN (?, ?) ORDER BY id LIMIT 1`,
		category,
		sourcePath,
		StatusCompleted,
		StatusFailed,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()

	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET
            identity = ?,
            title = ?,
            source_category = ?,
            source_path = ?,
            status = ?,
            workspace_dir = ?,
            input_file = ?,
            audio_file = ?,
            transcript_file = ?,
            duration_seconds = ?,
            chunk_count = ?,
            model = ?,
            attempts = ?,
            correlation_id = ?,
            job_log_path = ?,
            error_message = ?,
            updated_at = ?
        WHERE id = ?`,
		job.Identity,
		nullableString(job.Title),
		job.SourceCategory,
		job.SourcePath,
		job.Status,
		nullableString(job.WorkspaceDir),
		nullableString(job.InputFile),
		nullableString(job.AudioFile),
		nullableString(job.TranscriptFile),
		job.DurationSeconds,
		job.ChunkCount,
		nullableString(job.Model),
		job.Attempts,
		nullableString(job.CorrelationID),
		nullableString(job.JobLogPath),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// JobsByStatus lists jobs matching a status ordered by identifier.
func (s *Store) JobsByStatus(ctx context.Context, status Status) ([]*Job, error) {
	return s.List(ctx, status)
}

// List returns jobs matching the provided statuses, or all jobs when no
// statuses are given, ordered by identifier.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextInCategory returns the lowest-id job in a source category whose status
// is non-terminal, or nil when the category is drained.
func (s *Store) NextInCategory(ctx context.Context, category string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE source_category = ? AND status NOT IN (?, ?) ORDER BY id LIMIT 1`,
		category,
		StatusCompleted,
		StatusFailed,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next in category: %w", err)
	}
	return job, nil
}

// Remove deletes a job by identifier. Returns true when a row was removed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes completed jobs and returns the count removed.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearWhere(ctx, `status = ?`, StatusCompleted)
}

// ClearFailed removes failed jobs and returns the count removed.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.clearWhere(ctx, `status = ?`, StatusFailed)
}

// Clear removes all jobs and returns the count removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.clearWhere(ctx, `1 = 1`)
}

func (s *Store) clearWhere(ctx context.Context, where string, args ...any) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
