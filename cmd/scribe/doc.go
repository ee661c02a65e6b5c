// Command scribe is the batch transcription CLI: it queues media, runs the
// pipeline to completion, and inspects the job catalog.
package main
