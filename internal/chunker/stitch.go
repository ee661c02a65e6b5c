package chunker

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// ChunkTranscript points at the engine outputs for one chunk together with
// the chunk's offset into the whole recording.
type ChunkTranscript struct {
	TextPath string
	SRTPath  string
	JSONPath string
	Offset   time.Duration
}

// Segment is one timed span of the stitched transcript, in absolute
// milliseconds from the start of the source media.
type Segment struct {
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Transcript is the stitched machine-readable output document.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// whisperOutput mirrors the engine's JSON output closely enough to lift
// segment offsets and text.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// StitchText concatenates per-chunk plain text in chunk order, separated by
// blank lines, into outPath.
func StitchText(chunks []ChunkTranscript, outPath string) error {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		data, err := os.ReadFile(chunk.TextPath)
		if err != nil {
			return fmt.Errorf("read chunk text: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text != "" {
			parts = append(parts, text)
		}
	}
	stitched := strings.Join(parts, "\n\n")
	if stitched != "" {
		stitched += "\n"
	}
	if err := os.WriteFile(outPath, []byte(stitched), 0o644); err != nil {
		return fmt.Errorf("write stitched text: %w", err)
	}
	return nil
}

// StitchSRT merges per-chunk subtitles into outPath. Cue timestamps shift by
// each chunk's offset and indices renumber from 1 across the whole output,
// so a cue at 00:00:05 in the third 15-minute chunk lands at 00:30:05.
func StitchSRT(chunks []ChunkTranscript, outPath string) error {
	var merged []Cue
	for _, chunk := range chunks {
		file, err := os.Open(chunk.SRTPath)
		if err != nil {
			return fmt.Errorf("open chunk srt: %w", err)
		}
		cues, err := ParseSRT(file)
		file.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", chunk.SRTPath, err)
		}
		merged = append(merged, Shift(cues, chunk.Offset)...)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create stitched srt: %w", err)
	}
	if err := WriteSRT(out, merged); err != nil {
		out.Close()
		return fmt.Errorf("write stitched srt: %w", err)
	}
	return out.Close()
}

// StitchJSON merges per-chunk engine JSON into a single segment document at
// outPath. Segment offsets become absolute; the first reported language wins.
func StitchJSON(chunks []ChunkTranscript, outPath string) error {
	doc := Transcript{Segments: []Segment{}}
	for _, chunk := range chunks {
		data, err := os.ReadFile(chunk.JSONPath)
		if err != nil {
			return fmt.Errorf("read chunk json: %w", err)
		}
		var parsed whisperOutput
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("parse %s: %w", chunk.JSONPath, err)
		}
		if doc.Language == "" {
			doc.Language = parsed.Result.Language
		}
		offsetMS := chunk.Offset.Milliseconds()
		for _, segment := range parsed.Transcription {
			text := strings.TrimSpace(segment.Text)
			if text == "" {
				continue
			}
			doc.Segments = append(doc.Segments, Segment{
				StartMS: segment.Offsets.From + offsetMS,
				EndMS:   segment.Offsets.To + offsetMS,
				Text:    text,
			})
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stitched json: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write stitched json: %w", err)
	}
	return nil
}
