// Package whisper drives the whisper.cpp CLI and owns model selection.
package whisper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/services"
)

// Outputs are the three artifacts one engine invocation produces.
type Outputs struct {
	TextPath string
	SRTPath  string
	JSONPath string
}

// Client invokes the transcription engine.
type Client struct {
	binary        string
	modelDir      string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewClient builds a client for the given engine executable and model
// directory.
func NewClient(binary, modelDir string) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = "whisper-cli"
	}
	return &Client{binary: binary, modelDir: modelDir}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.commandRunner = runner
}

// ModelPath resolves a model name to its file. Names that already look like
// paths pass through untouched.
func (c *Client) ModelPath(model string) string {
	if strings.ContainsRune(model, os.PathSeparator) || strings.HasSuffix(model, ".bin") {
		return model
	}
	return filepath.Join(c.modelDir, "ggml-"+model+".bin")
}

// Transcribe runs the engine over a normalized WAV, writing text, SRT, and
// JSON outputs at outputPrefix. The text file is the success criterion: if it
// is absent afterwards the attempt failed, whatever the exit code said.
func (c *Client) Transcribe(ctx context.Context, wavPath, model, language, outputPrefix string) (Outputs, error) {
	if strings.TrimSpace(wavPath) == "" {
		return Outputs{}, services.Wrap(services.ErrValidation, "", "transcribe", "audio path required", nil)
	}
	if strings.TrimSpace(model) == "" {
		return Outputs{}, services.Wrap(services.ErrConfiguration, "", "transcribe", "model name required", nil)
	}

	args := []string{
		"-m", c.ModelPath(model),
		"-f", wavPath,
		"-otxt", "-osrt", "-oj",
		"-of", outputPrefix,
	}
	if lang := strings.TrimSpace(language); lang != "" {
		args = append(args, "-l", lang)
	}

	runErr := c.run(ctx, args...)

	outputs := Outputs{
		TextPath: outputPrefix + ".txt",
		SRTPath:  outputPrefix + ".srt",
		JSONPath: outputPrefix + ".json",
	}
	if _, statErr := os.Stat(outputs.TextPath); statErr != nil {
		if runErr != nil {
			return Outputs{}, fmt.Errorf("transcription engine: %w", runErr)
		}
		return Outputs{}, services.Wrap(services.ErrExternalTool, "", "transcribe",
			"engine exited cleanly but produced no text output", statErr)
	}
	// The text file exists, so the attempt counts as a success even when the
	// engine exited nonzero.
	return outputs, nil
}

func (c *Client) run(ctx context.Context, args ...string) error {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, c.binary, args...)
	}
	cmd := exec.CommandContext(ctx, c.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}
