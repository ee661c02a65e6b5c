package config

const (
	defaultQueueDir           = "~/scribe/queue"
	defaultWorkDir            = "~/.local/share/scribe/work"
	defaultDoneDir            = "~/scribe/done"
	defaultFailedDir          = "~/scribe/failed"
	defaultLogDir             = "~/.local/share/scribe/logs"
	defaultURLList            = "~/scribe/queue/urls.txt"
	defaultModel              = "auto"
	defaultLanguage           = "auto"
	defaultChunkSeconds       = 900
	defaultMaxDuration        = 14400
	defaultMinFreeRAMMB       = 2048
	defaultMaxSwapUsedMB      = 1024
	defaultMinFreeDiskMB      = 4096
	defaultPollInterval       = 10
	defaultMaxWaitSeconds     = 0 // wait for RAM indefinitely
	defaultMaxRetries         = 3
	defaultBaseDelaySeconds   = 5
	defaultRetryMultiplier    = 2.0
	defaultProbeTimeout       = 60
	defaultConvertTimeout     = 1800
	defaultTranscribeTimeout  = 7200
	defaultDownloadTimeout    = 3600
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultWhisperBinary      = "whisper-cli"
	defaultDownloaderBinary   = "yt-dlp"
	defaultAudioFilter        = "highpass=f=80,acompressor=threshold=-18dB:ratio=3,loudnorm"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultModelDir           = "~/.local/share/scribe/models"
)

var defaultSourcePriority = []string{"local", "url"}

var defaultExtensions = []string{
	".mp3", ".wav", ".flac", ".m4a", ".ogg", ".opus", ".aac", ".wma",
	".mp4", ".mkv", ".webm", ".mov", ".avi", ".m4v",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			QueueDir:  defaultQueueDir,
			WorkDir:   defaultWorkDir,
			DoneDir:   defaultDoneDir,
			FailedDir: defaultFailedDir,
			LogDir:    defaultLogDir,
			URLList:   defaultURLList,
		},
		Sources: Sources{
			Priority:   append([]string{}, defaultSourcePriority...),
			Extensions: append([]string{}, defaultExtensions...),
		},
		Transcription: Transcription{
			Model:              defaultModel,
			ModelDir:           defaultModelDir,
			Language:           defaultLanguage,
			ChunkSeconds:       defaultChunkSeconds,
			MaxDurationSeconds: defaultMaxDuration,
		},
		Resources: Resources{
			Enabled:             true,
			MinFreeRAMMB:        defaultMinFreeRAMMB,
			MaxSwapUsedMB:       defaultMaxSwapUsedMB,
			MinFreeDiskMB:       defaultMinFreeDiskMB,
			PollIntervalSeconds: defaultPollInterval,
			MaxWaitSeconds:      defaultMaxWaitSeconds,
		},
		Retry: Retry{
			MaxRetries:       defaultMaxRetries,
			BaseDelaySeconds: defaultBaseDelaySeconds,
			Multiplier:       defaultRetryMultiplier,
		},
		Timeouts: Timeouts{
			Probe:      defaultProbeTimeout,
			Convert:    defaultConvertTimeout,
			Transcribe: defaultTranscribeTimeout,
			Download:   defaultDownloadTimeout,
		},
		Engines: Engines{
			FFmpeg:      defaultFFmpegBinary,
			FFprobe:     defaultFFprobeBinary,
			Whisper:     defaultWhisperBinary,
			Downloader:  defaultDownloaderBinary,
			AudioFilter: defaultAudioFilter,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Cleanup: Cleanup{
			RemoveWorkspaceOnSuccess: false,
			KeepAudio:                false,
		},
	}
}
