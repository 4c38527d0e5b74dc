package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	CoverDir string `toml:"cover_dir"`
}

// Download contains the global capture settings shared by every streamer.
type Download struct {
	Downloader       string `toml:"downloader"`
	Delay            int    `toml:"delay"`
	SegmentTime      string `toml:"segment_time"`
	FileSize         int64  `toml:"file_size"`
	FilenamePrefix   string `toml:"filename_prefix"`
	UseLiveCover     bool   `toml:"use_live_cover"`
	ConsoleMirror    string `toml:"console_mirror"`
	QuitGraceSeconds int    `toml:"quit_grace_seconds"`
	CoverTimeout     int    `toml:"cover_timeout"`
	ReadTimeout      int    `toml:"read_timeout"`
	UserAgent        string `toml:"user_agent"`
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	StreamlinkBinary string `toml:"streamlink_binary"`
}

// Hook is one post-capture command.
type Hook struct {
	Run string `toml:"run"`
}

// Streamer describes a single capture task. Empty override fields inherit the
// [download] section.
type Streamer struct {
	URL                 string            `toml:"url"`
	Platform            string            `toml:"platform"`
	Suffix              string            `toml:"suffix"`
	DownloadMode        bool              `toml:"download_mode"`
	Downloader          string            `toml:"downloader"`
	FilenamePrefix      string            `toml:"filename_prefix"`
	UseLiveCover        *bool             `toml:"use_live_cover"`
	SegmentTime         string            `toml:"segment_time"`
	FileSize            int64             `toml:"file_size"`
	OptArgs             []string          `toml:"opt_args"`
	Headers             map[string]string `toml:"headers"`
	DownloadedProcessor []Hook            `toml:"downloaded_processor"`
}

// Daemon contains timing for the multi-task runner.
type Daemon struct {
	RestartInterval int `toml:"restart_interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	CaptureStarted bool   `toml:"capture_started"`
	StreamEnded    bool   `toml:"stream_ended"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	TaskLogs      bool   `toml:"task_logs"`
}

// Config encapsulates all configuration values for livecap.
//
// Configuration sections by subsystem:
//   - Paths: recording, log, and cover directories
//   - Download: default backend, retry delay, segmenting, naming
//   - Streamers: one capture task per entry
//   - Daemon: restart timing for `livecap run`
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths               `toml:"paths"`
	Download      Download            `toml:"download"`
	Streamers     map[string]Streamer `toml:"streamers"`
	Daemon        Daemon              `toml:"daemon"`
	Notifications Notifications       `toml:"notifications"`
	Logging       Logging             `toml:"logging"`

	warnings []string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("livecap.toml")
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

// loadDotEnv reads .env files next to the config file and in the working
// directory. Variables already present in the environment win.
func loadDotEnv(configDir string) error {
	candidates := []string{filepath.Join(configDir, ".env")}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load env file %s: %w", candidate, err)
		}
	}
	return nil
}

// EnsureDirectories creates required directories for capture operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.CoverDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StreamerNames returns the configured streamer names in sorted order.
func (c *Config) StreamerNames() []string {
	names := make([]string, 0, len(c.Streamers))
	for name := range c.Streamers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Streamer returns the named streamer entry.
func (c *Config) Streamer(name string) (Streamer, bool) {
	s, ok := c.Streamers[name]
	return s, ok
}

// Backend returns the effective capture backend for the named streamer.
func (c *Config) Backend(name string) string {
	if s, ok := c.Streamers[name]; ok && s.Downloader != "" {
		return s.Downloader
	}
	return c.Download.Downloader
}

// Backends returns the distinct backends referenced by any streamer.
func (c *Config) Backends() []string {
	set := map[string]struct{}{c.Download.Downloader: {}}
	for name := range c.Streamers {
		set[c.Backend(name)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for backend := range set {
		out = append(out, backend)
	}
	sort.Strings(out)
	return out
}

// FilenameTemplate returns the effective file name template for the streamer,
// or "" when the default template applies.
func (c *Config) FilenameTemplate(name string) string {
	if s, ok := c.Streamers[name]; ok && s.FilenamePrefix != "" {
		return s.FilenamePrefix
	}
	return c.Download.FilenamePrefix
}

// UseLiveCover reports whether cover fetching is enabled for the streamer.
func (c *Config) UseLiveCover(name string) bool {
	if s, ok := c.Streamers[name]; ok && s.UseLiveCover != nil {
		return *s.UseLiveCover
	}
	return c.Download.UseLiveCover
}

// Headers returns the request headers sent to the streamer's source: a
// browser-like default set overlaid with the streamer's own headers.
func (c *Config) Headers(name string) map[string]string {
	headers := map[string]string{
		"Accept":          "*/*",
		"Accept-Encoding": "gzip, deflate",
		"Accept-Language": "zh-CN,zh;q=0.8,en-US;q=0.5,en;q=0.3",
		"User-Agent":      c.Download.UserAgent,
	}
	if headers["User-Agent"] == "" {
		headers["User-Agent"] = defaultUserAgent
	}
	if s, ok := c.Streamers[name]; ok {
		for k, v := range s.Headers {
			headers[k] = v
		}
	}
	return headers
}

// Warnings returns non-fatal findings collected during normalization.
func (c *Config) Warnings() []string {
	return append([]string(nil), c.warnings...)
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if c.Download.FFmpegBinary != "" {
		return c.Download.FFmpegBinary
	}
	return "ffmpeg"
}

// StreamlinkBinary returns the streamlink executable name.
func (c *Config) StreamlinkBinary() string {
	if c.Download.StreamlinkBinary != "" {
		return c.Download.StreamlinkBinary
	}
	return "streamlink"
}

// HistoryPath returns the location of the run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "livecap.lock")
}

// PIDPath returns the pid file written while the daemon runs.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "livecap.pid")
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

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
