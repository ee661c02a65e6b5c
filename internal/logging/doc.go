// Package logging builds the slog loggers used across scribe.
//
// Two output formats are supported: a compact console format for interactive
// runs and JSON for machine consumption. Loggers carry standardized field
// keys (component, job_id, stage, event_type) so the run log and per-job
// logs stay greppable. Per-job loggers write to a file inside the job
// workspace and are passed explicitly into the stage driver; there is no
// process-global mutable log destination.
package logging
