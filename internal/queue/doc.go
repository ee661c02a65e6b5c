// Package queue persists the job catalog backing the transcription pipeline.
//
// The catalog is a SQLite database in the work directory. It is the run-level
// index: discovery inserts jobs here, the workflow manager advances their
// status at stage boundaries, and the CLI reads it for listing and retry.
// The per-job workspace keeps its own state record; the catalog row points at
// the workspace and mirrors enough of the record for queries.
//
// The schema is versioned. When statuses or columns change, update schema.sql
// and bump schemaVersion.
package queue
