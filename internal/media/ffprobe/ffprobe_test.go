package ffprobe

import (
	"context"
	"testing"
)

const sampleOutput = `{
  "streams": [
    {"index": 0, "codec_name": "aac", "codec_type": "audio", "duration": "2999.5", "sample_rate": "44100", "channels": 2},
    {"index": 1, "codec_name": "h264", "codec_type": "video", "duration": "3000.0"}
  ],
  "format": {"filename": "lecture.mp4", "nb_streams": 2, "duration": "3000.1", "format_name": "mov,mp4"}
}`

func TestParseReadsDurationAndStreams(t *testing.T) {
	result, err := Parse([]byte(sampleOutput))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := result.DurationSeconds(); got != 3000.1 {
		t.Fatalf("duration = %v", got)
	}
	if result.AudioStreamCount() != 1 || !result.HasAudio() {
		t.Fatalf("audio streams = %d", result.AudioStreamCount())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result, err := Parse([]byte(`{
  "streams": [
    {"index": 0, "codec_type": "audio", "duration": "120.5"},
    {"index": 1, "codec_type": "audio", "duration": "90.0"}
  ],
  "format": {"filename": "x.ogg"}
}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := result.DurationSeconds(); got != 120.5 {
		t.Fatalf("duration = %v", got)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte("{")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestInspectRequiresPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
