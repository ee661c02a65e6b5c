package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// JobLog is an explicit per-job logger writing into the job workspace.
// It replaces the process-global "current job log" pointer some pipelines
// keep: the driver receives a JobLog and threads it through every stage.
type JobLog struct {
	Logger *slog.Logger
	file   *os.File
}

// OpenJobLog opens (or appends to) the job log file at path. Records are
// written to the file in console format and mirrored to parent when it is
// non-nil.
func OpenJobLog(path, level string, parent *slog.Logger) (*JobLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open job log: %w", err)
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(level))

	var handler slog.Handler = newConsoleHandler(file, levelVar)
	if parent != nil {
		handler = teeHandler{primary: handler, secondary: parent.Handler()}
	}
	return &JobLog{Logger: slog.New(handler), file: file}, nil
}

// Close flushes and closes the underlying log file.
func (j *JobLog) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// Writer exposes the raw file for collaborator output capture.
func (j *JobLog) Writer() io.Writer {
	if j == nil || j.file == nil {
		return io.Discard
	}
	return j.file
}
