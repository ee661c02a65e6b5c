package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, identity, title, source_category, source_path, status, workspace_dir, input_file, audio_file, transcript_file, duration_seconds, chunk_count, model, attempts, correlation_id, job_log_path, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id             int64
		identity       string
		title          sql.NullString
		sourceCategory string
		sourcePath     string
		statusStr      string
		workspaceDir   sql.NullString
		inputFile      sql.NullString
		audioFile      sql.NullString
		transcriptFile sql.NullString
		duration       sql.NullFloat64
		chunkCount     sql.NullInt64
		model          sql.NullString
		attempts       sql.NullInt64
		correlationID  sql.NullString
		jobLogPath     sql.NullString
		errorMessage   sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&identity,
		&title,
		&sourceCategory,
		&sourcePath,
		&statusStr,
		&workspaceDir,
		&inputFile,
		&audioFile,
		&transcriptFile,
		&duration,
		&chunkCount,
		&model,
		&attempts,
		&correlationID,
		&jobLogPath,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Identity:        identity,
		Title:           title.String,
		SourceCategory:  sourceCategory,
		SourcePath:      sourcePath,
		Status:          Status(statusStr),
		WorkspaceDir:    workspaceDir.String,
		InputFile:       inputFile.String,
		AudioFile:       audioFile.String,
		TranscriptFile:  transcriptFile.String,
		DurationSeconds: duration.Float64,
		ChunkCount:      int(chunkCount.Int64),
		Model:           model.String,
		Attempts:        int(attempts.Int64),
		CorrelationID:   correlationID.String,
		JobLogPath:      jobLogPath.String,
		ErrorMessage:    errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
