// Package transcribe holds the transcription-side stage handlers: the chunk
// planner, the per-chunk transcriber, the stitcher, and the single-pass
// transcriber for inputs short enough to skip chunking.
package transcribe
