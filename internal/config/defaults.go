package config

const (
	defaultConfigPath          = "~/.config/livecap/config.toml"
	defaultWorkDir             = "~/.local/share/livecap/recordings"
	defaultLogDir              = "~/.local/share/livecap/logs"
	defaultCoverDir            = "~/.local/share/livecap/cover"
	defaultDownloader          = BackendStreamlink
	defaultSuffix              = "flv"
	defaultConsoleMirror       = MirrorAuto
	defaultQuitGraceSeconds    = 30
	defaultCoverTimeout        = 30
	defaultReadTimeout         = 20
	defaultUserAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36"
	defaultRestartInterval     = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultNotifyTimeout       = 10
	defaultNativeSegmentSize   = int64(8) * 1024 * 1024 * 1024
	defaultExternalSegmentSize = int64(2621440000)
)

// Capture backends.
const (
	BackendNative     = "native"
	BackendStreamlink = "streamlink"
	BackendFFmpeg     = "ffmpeg"
)

// Console mirror modes.
const (
	MirrorAuto   = "auto"
	MirrorAlways = "always"
	MirrorNever  = "never"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			CoverDir: defaultCoverDir,
		},
		Download: Download{
			Downloader:       defaultDownloader,
			ConsoleMirror:    defaultConsoleMirror,
			QuitGraceSeconds: defaultQuitGraceSeconds,
			CoverTimeout:     defaultCoverTimeout,
			ReadTimeout:      defaultReadTimeout,
			UserAgent:        defaultUserAgent,
		},
		Streamers: map[string]Streamer{},
		Daemon: Daemon{
			RestartInterval: defaultRestartInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			CaptureStarted: true,
			StreamEnded:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			TaskLogs:      true,
		},
	}
}
