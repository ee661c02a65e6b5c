package stage

import (
	"context"
	"log/slog"

	"scribe/internal/queue"
)

// Handler describes the contract the job stage driver needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by handlers that accept the per-job logger
// before execution.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
