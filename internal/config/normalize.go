package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSources()
	c.normalizeTranscription()
	c.normalizeEngines()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.QueueDir, err = expandPath(c.Paths.QueueDir); err != nil {
		return fmt.Errorf("paths.queue_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.DoneDir, err = expandPath(c.Paths.DoneDir); err != nil {
		return fmt.Errorf("paths.done_dir: %w", err)
	}
	if c.Paths.FailedDir, err = expandPath(c.Paths.FailedDir); err != nil {
		return fmt.Errorf("paths.failed_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.URLList) == "" {
		c.Paths.URLList = defaultURLList
	}
	if c.Paths.URLList, err = expandPath(c.Paths.URLList); err != nil {
		return fmt.Errorf("paths.url_list: %w", err)
	}
	return nil
}

func (c *Config) normalizeSources() {
	priority := make([]string, 0, len(c.Sources.Priority))
	for _, category := range c.Sources.Priority {
		trimmed := strings.ToLower(strings.TrimSpace(category))
		if trimmed != "" {
			priority = append(priority, trimmed)
		}
	}
	if len(priority) == 0 {
		priority = append(priority, defaultSourcePriority...)
	}
	c.Sources.Priority = priority

	extensions := make([]string, 0, len(c.Sources.Extensions))
	for _, ext := range c.Sources.Extensions {
		trimmed := strings.ToLower(strings.TrimSpace(ext))
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		extensions = append(extensions, trimmed)
	}
	if len(extensions) == 0 {
		extensions = append(extensions, defaultExtensions...)
	}
	c.Sources.Extensions = extensions
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if c.Transcription.Language == "" {
		c.Transcription.Language = defaultLanguage
	}
	if expanded, err := expandPath(c.Transcription.ModelDir); err == nil {
		c.Transcription.ModelDir = expanded
	}
}

func (c *Config) normalizeEngines() {
	if strings.TrimSpace(c.Engines.FFmpeg) == "" {
		c.Engines.FFmpeg = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Engines.FFprobe) == "" {
		c.Engines.FFprobe = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Engines.Whisper) == "" {
		c.Engines.Whisper = defaultWhisperBinary
	}
	if strings.TrimSpace(c.Engines.Downloader) == "" {
		c.Engines.Downloader = defaultDownloaderBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
