// Package chunker plans fixed-length chunking for long media and stitches
// per-chunk transcripts back into whole-job outputs.
package chunker

import (
	"fmt"
	"math"
)

// Chunk is one fixed-length slice of the source audio.
type Chunk struct {
	Index         int
	OffsetSeconds float64
	LengthSeconds float64
}

// Plan describes how a job's audio splits into chunks.
type Plan struct {
	DurationSeconds float64
	ChunkSeconds    int
	Chunks          []Chunk
}

// BuildPlan splits a duration into ceil(duration/chunkSeconds) chunks. Every
// chunk is chunkSeconds long except the last, which covers the remainder.
func BuildPlan(durationSeconds float64, chunkSeconds int) (Plan, error) {
	if durationSeconds <= 0 {
		return Plan{}, fmt.Errorf("duration must be positive, got %v", durationSeconds)
	}
	if chunkSeconds <= 0 {
		return Plan{}, fmt.Errorf("chunk length must be positive, got %d", chunkSeconds)
	}

	count := int(math.Ceil(durationSeconds / float64(chunkSeconds)))
	plan := Plan{
		DurationSeconds: durationSeconds,
		ChunkSeconds:    chunkSeconds,
		Chunks:          make([]Chunk, 0, count),
	}
	for i := 0; i < count; i++ {
		offset := float64(i * chunkSeconds)
		length := float64(chunkSeconds)
		if remaining := durationSeconds - offset; remaining < length {
			length = remaining
		}
		plan.Chunks = append(plan.Chunks, Chunk{
			Index:         i,
			OffsetSeconds: offset,
			LengthSeconds: length,
		})
	}
	return plan, nil
}

// Count returns the number of planned chunks.
func (p Plan) Count() int {
	return len(p.Chunks)
}

// BaseName returns the zero-padded artifact stem for the chunk, e.g.
// chunk_0003. Padding keeps lexical and numeric ordering identical.
func (c Chunk) BaseName() string {
	return fmt.Sprintf("chunk_%04d", c.Index)
}
