package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateResources(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.QueueDir == "" {
		return errors.New("paths.queue_dir must be set")
	}
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.DoneDir == "" {
		return errors.New("paths.done_dir must be set")
	}
	if c.Paths.FailedDir == "" {
		return errors.New("paths.failed_dir must be set")
	}
	if c.Paths.QueueDir == c.Paths.DoneDir || c.Paths.QueueDir == c.Paths.FailedDir {
		return errors.New("paths.queue_dir must differ from done_dir and failed_dir")
	}
	return nil
}

func (c *Config) validateSources() error {
	for _, category := range c.Sources.Priority {
		switch category {
		case "local", "url":
		default:
			return fmt.Errorf("sources.priority: unknown category %q (expected local or url)", category)
		}
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.ChunkSeconds <= 0 {
		return errors.New("transcription.chunk_seconds must be positive")
	}
	if c.Transcription.MaxDurationSeconds < 0 {
		return errors.New("transcription.max_duration_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateResources() error {
	if !c.Resources.Enabled {
		return nil
	}
	if err := ensurePositiveMap(map[string]int{
		"resources.min_free_ram_mb":       c.Resources.MinFreeRAMMB,
		"resources.min_free_disk_mb":      c.Resources.MinFreeDiskMB,
		"resources.poll_interval_seconds": c.Resources.PollIntervalSeconds,
	}); err != nil {
		return err
	}
	if c.Resources.MaxSwapUsedMB < 0 {
		return errors.New("resources.max_swap_used_mb must not be negative")
	}
	if c.Resources.MaxWaitSeconds < 0 {
		return errors.New("resources.max_wait_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must not be negative")
	}
	if c.Retry.BaseDelaySeconds < 0 {
		return errors.New("retry.base_delay_seconds must not be negative")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("retry.multiplier must be at least 1")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"timeouts.probe":      c.Timeouts.Probe,
		"timeouts.convert":    c.Timeouts.Convert,
		"timeouts.transcribe": c.Timeouts.Transcribe,
		"timeouts.download":   c.Timeouts.Download,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
