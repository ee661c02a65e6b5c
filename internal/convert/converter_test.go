package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/config"
	"scribe/internal/convert"
	"scribe/internal/logging"
	"scribe/internal/media/ffmpeg"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/testsupport"
	"scribe/internal/workspace"
)

func newConvertJob(t *testing.T) (*config.Config, *queue.Store, *queue.Job) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, "talk-deadbeef", "talk", "")
	job.WorkspaceDir = workspace.Dir(cfg, job.Identity)
	testsupport.WriteFile(t, workspace.InputPath(job.WorkspaceDir, ".mp4"), 4096)
	return cfg, store, job
}

func TestExecuteNormalizesInput(t *testing.T) {
	cfg, store, job := newConvertJob(t)
	ctx := context.Background()

	var captured []string
	client := ffmpeg.NewClient("ffmpeg")
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		captured = args
		testsupport.WriteFile(t, args[len(args)-1], 2048)
		return nil
	})

	handler := convert.NewConverterWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	audioPath := workspace.AudioPath(job.WorkspaceDir)
	if job.AudioFile != audioPath {
		t.Fatalf("AudioFile = %q, want %q", job.AudioFile, audioPath)
	}
	if _, err := os.Stat(audioPath); err != nil {
		t.Fatalf("audio not written: %v", err)
	}
	for i, arg := range captured {
		if arg == "-ar" && i+1 < len(captured) && captured[i+1] == "16000" {
			return
		}
	}
	t.Fatalf("ffmpeg args missing 16 kHz resample: %v", captured)
}

func TestExecuteReusesFinishedAudio(t *testing.T) {
	cfg, store, job := newConvertJob(t)
	ctx := context.Background()

	audioPath := workspace.AudioPath(job.WorkspaceDir)
	testsupport.WriteFile(t, audioPath, 2048)

	calls := 0
	client := ffmpeg.NewClient("ffmpeg")
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		calls++
		return errors.New("must not run")
	})

	handler := convert.NewConverterWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 0 {
		t.Fatalf("ffmpeg ran %d times for finished audio", calls)
	}
	if job.AudioFile != audioPath {
		t.Fatalf("AudioFile = %q", job.AudioFile)
	}
}

func TestExecuteDiscardsPartialOutputOnFailure(t *testing.T) {
	cfg, store, job := newConvertJob(t)
	ctx := context.Background()

	client := ffmpeg.NewClient("ffmpeg")
	client.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		// Simulate a crash mid-encode: the dest exists but is garbage.
		testsupport.WriteFile(t, args[len(args)-1], 128)
		return errors.New("ffmpeg exited 1")
	})

	handler := convert.NewConverterWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := handler.Execute(ctx, job)
	if err == nil {
		t.Fatal("expected conversion failure")
	}
	if !services.Retryable(err) {
		t.Fatalf("tool failure should be retryable: %v", err)
	}
	if _, statErr := os.Stat(workspace.AudioPath(job.WorkspaceDir)); !os.IsNotExist(statErr) {
		t.Fatalf("partial audio survived the failure: %v", statErr)
	}
}

func TestPrepareRequiresIngestedInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, "empty-deadbeef", "empty", "")
	job.WorkspaceDir = filepath.Join(cfg.Paths.WorkDir, job.Identity)
	if err := os.MkdirAll(job.WorkspaceDir, 0o755); err != nil {
		t.Fatalf("mkdir workspace: %v", err)
	}

	handler := convert.NewConverterWithClient(cfg, store, logging.NewNop(), ffmpeg.NewClient("ffmpeg"))
	err := handler.Prepare(context.Background(), job)
	if err == nil {
		t.Fatal("expected error for empty workspace")
	}
	if services.Retryable(err) {
		t.Fatalf("missing input must not be retried: %v", err)
	}
}
