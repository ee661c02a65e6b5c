package whisper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/services"
)

func TestTranscribeBuildsArgsAndRequiresTextOutput(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "chunk_0000")

	client := NewClient("whisper-cli", "/models")
	var gotArgs []string
	client.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != "whisper-cli" {
			t.Fatalf("binary = %q", name)
		}
		gotArgs = args
		// Engine writes its three outputs on success.
		for _, ext := range []string{".txt", ".srt", ".json"} {
			if err := os.WriteFile(prefix+ext, []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		return nil
	})

	outputs, err := client.Transcribe(context.Background(), "/work/audio.wav", "small", "en", prefix)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-m /models/ggml-small.bin", "-f /work/audio.wav", "-otxt", "-osrt", "-oj", "-of " + prefix, "-l en"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if outputs.TextPath != prefix+".txt" || outputs.SRTPath != prefix+".srt" || outputs.JSONPath != prefix+".json" {
		t.Fatalf("unexpected outputs: %#v", outputs)
	}
}

func TestTranscribeMissingTextIsFailureDespiteCleanExit(t *testing.T) {
	dir := t.TempDir()
	client := NewClient("whisper-cli", "/models")
	client.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return nil
	})

	_, err := client.Transcribe(context.Background(), "/work/audio.wav", "small", "", filepath.Join(dir, "out"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
}

func TestTranscribeTextPresenceOverridesExitCode(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")
	client := NewClient("whisper-cli", "/models")
	client.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		if err := os.WriteFile(prefix+".txt", []byte("partial text"), 0o644); err != nil {
			t.Fatal(err)
		}
		return errors.New("exit status 1")
	})

	outputs, err := client.Transcribe(context.Background(), "/work/audio.wav", "small", "", prefix)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if outputs.TextPath != prefix+".txt" {
		t.Fatalf("outputs = %#v", outputs)
	}
}

func TestModelPathPassesThroughExplicitFiles(t *testing.T) {
	client := NewClient("whisper-cli", "/models")
	if got := client.ModelPath("/opt/models/custom.bin"); got != "/opt/models/custom.bin" {
		t.Fatalf("ModelPath = %q", got)
	}
	if got := client.ModelPath("base"); got != "/models/ggml-base.bin" {
		t.Fatalf("ModelPath = %q", got)
	}
}

func TestPickModelDecisionTable(t *testing.T) {
	cases := []struct {
		name     string
		duration float64
		freeRAM  uint64
		want     string
	}{
		{"ample ram short input", 600, 16 * gib, ModelLarge},
		{"ample ram very long input", 3 * 3600, 16 * gib, ModelMedium},
		{"medium ram", 600, 6 * gib, ModelMedium},
		{"small ram", 600, 4 * gib, ModelSmall},
		{"tight ram", 600, 2 * gib, ModelBase},
		{"minimal ram", 600, 1 * gib, ModelTiny},
		{"minimal ram long input", 3 * 3600, 1 * gib, ModelTiny},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PickModel(tc.duration, tc.freeRAM); got != tc.want {
				t.Fatalf("PickModel(%v, %d) = %q, want %q", tc.duration, tc.freeRAM, got, tc.want)
			}
		})
	}
}

func TestPickModelIsDeterministic(t *testing.T) {
	first := PickModel(1800, 8*gib)
	for i := 0; i < 5; i++ {
		if got := PickModel(1800, 8*gib); got != first {
			t.Fatalf("PickModel varied: %q then %q", first, got)
		}
	}
}
