// Package workflow drives the transcription pipeline for one batch run.
//
// A run holds an exclusive lock, verifies external tools, discovers queued
// sources into the catalog, then drains each source category in configured
// priority order one job at a time. Every job walks a persistent stage
// machine; the workspace state record is saved at each stage boundary so an
// interrupted run resumes from finished artifacts instead of starting over.
package workflow
