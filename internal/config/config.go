package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for the pipeline.
type Paths struct {
	QueueDir  string `toml:"queue_dir"`
	WorkDir   string `toml:"work_dir"`
	DoneDir   string `toml:"done_dir"`
	FailedDir string `toml:"failed_dir"`
	LogDir    string `toml:"log_dir"`
	URLList   string `toml:"url_list"`
}

// Sources controls which input categories are drained and in what order.
type Sources struct {
	Priority   []string `toml:"priority"`
	Extensions []string `toml:"extensions"`
}

// Transcription contains model selection and chunking behavior.
type Transcription struct {
	Model              string `toml:"model"`
	ModelDir           string `toml:"model_dir"`
	Language           string `toml:"language"`
	ChunkSeconds       int    `toml:"chunk_seconds"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
}

// Resources contains backpressure thresholds for the resource gate.
type Resources struct {
	Enabled             bool `toml:"enabled"`
	MinFreeRAMMB        int  `toml:"min_free_ram_mb"`
	MaxSwapUsedMB       int  `toml:"max_swap_used_mb"`
	MinFreeDiskMB       int  `toml:"min_free_disk_mb"`
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
	MaxWaitSeconds      int  `toml:"max_wait_seconds"`
}

// Retry contains the backoff policy applied to transient stage failures.
type Retry struct {
	MaxRetries       int     `toml:"max_retries"`
	BaseDelaySeconds int     `toml:"base_delay_seconds"`
	Multiplier       float64 `toml:"multiplier"`
}

// Timeouts contains per-collaborator subprocess deadlines in seconds.
type Timeouts struct {
	Probe      int `toml:"probe"`
	Convert    int `toml:"convert"`
	Transcribe int `toml:"transcribe"`
	Download   int `toml:"download"`
}

// Engines contains executable names and invocation settings for the
// external collaborators.
type Engines struct {
	FFmpeg      string `toml:"ffmpeg"`
	FFprobe     string `toml:"ffprobe"`
	Whisper     string `toml:"whisper"`
	Downloader  string `toml:"downloader"`
	AudioFilter string `toml:"audio_filter"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Cleanup controls workspace disposal after terminal states.
type Cleanup struct {
	RemoveWorkspaceOnSuccess bool `toml:"remove_workspace_on_success"`
	KeepAudio                bool `toml:"keep_audio"`
	RemoveChunkWAVs          bool `toml:"remove_chunk_wavs"`
}

// Config encapsulates all configuration values for Scribe.
//
// Configuration sections by subsystem:
//   - Paths: queue, work, done, failed, and log directories plus the URL list
//   - Sources: input category drain order and recognized media extensions
//   - Transcription: model selection, language, and chunking thresholds
//   - Resources: RAM/swap/disk backpressure gate thresholds
//   - Retry: transient failure backoff policy
//   - Timeouts: per-collaborator subprocess deadlines
//   - Engines: external executable names and the audio filter chain
//   - Logging: log format and level
//   - Cleanup: workspace disposal after terminal states
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sources       Sources       `toml:"sources"`
	Transcription Transcription `toml:"transcription"`
	Resources     Resources     `toml:"resources"`
	Retry         Retry         `toml:"retry"`
	Timeouts      Timeouts      `toml:"timeouts"`
	Engines       Engines       `toml:"engines"`
	Logging       Logging       `toml:"logging"`
	Cleanup       Cleanup       `toml:"cleanup"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for a pipeline run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.QueueDir, c.Paths.WorkDir, c.Paths.DoneDir, c.Paths.FailedDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CatalogPath returns the path of the SQLite job catalog.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.WorkDir, "catalog.db")
}

// LockPath returns the path of the single-run lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.WorkDir, "scribe.lock")
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return c.Engines.FFmpeg
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return c.Engines.FFprobe
}

// WhisperBinary returns the transcription engine executable name.
func (c *Config) WhisperBinary() string {
	return c.Engines.Whisper
}

// DownloaderBinary returns the URL downloader executable name.
func (c *Config) DownloaderBinary() string {
	return c.Engines.Downloader
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Sample returns the embedded sample configuration text.
func Sample() string {
	return sampleConfig
}
