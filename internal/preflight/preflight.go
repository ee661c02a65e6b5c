// Package preflight verifies the environment before a batch run starts:
// working directories must be writable and the configured model must be on
// disk. Binary availability is covered by the stage handlers' own health
// checks.
package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/media/whisper"
	"scribe/internal/stage"
)

// Run evaluates every environment check and returns the results. Callers
// decide whether failures abort.
func Run(ctx context.Context, cfg *config.Config) []stage.Health {
	checks := []stage.Health{
		checkWritableDir("queue_dir", cfg.Paths.QueueDir),
		checkWritableDir("work_dir", cfg.Paths.WorkDir),
		checkWritableDir("done_dir", cfg.Paths.DoneDir),
		checkWritableDir("failed_dir", cfg.Paths.FailedDir),
		checkWritableDir("log_dir", cfg.Paths.LogDir),
		checkModel(cfg),
	}
	return checks
}

// Passed reports whether every check is ready.
func Passed(checks []stage.Health) bool {
	for _, check := range checks {
		if !check.Ready {
			return false
		}
	}
	return true
}

func checkWritableDir(name, path string) stage.Health {
	if path == "" {
		return stage.Unhealthy(name, "not configured")
	}
	info, err := os.Stat(path)
	if err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("%s: %v", path, err))
	}
	if !info.IsDir() {
		return stage.Unhealthy(name, fmt.Sprintf("%s is not a directory", path))
	}
	if err := unix.Access(path, unix.W_OK); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("%s is not writable", path))
	}
	return stage.Healthy(name)
}

// checkModel verifies the model configuration can produce a loadable model
// file. Auto selection only needs the model directory; a named model must
// already be downloaded.
func checkModel(cfg *config.Config) stage.Health {
	const name = "model"
	model := cfg.Transcription.Model
	if model == "" || model == "auto" {
		info, err := os.Stat(cfg.Transcription.ModelDir)
		if err != nil || !info.IsDir() {
			return stage.Unhealthy(name, fmt.Sprintf("model_dir %s is not a directory", cfg.Transcription.ModelDir))
		}
		return stage.Healthy(name)
	}

	client := whisper.NewClient(cfg.WhisperBinary(), cfg.Transcription.ModelDir)
	path := client.ModelPath(model)
	if _, err := os.Stat(path); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("model file %s not found", path))
	}
	return stage.Healthy(name)
}
