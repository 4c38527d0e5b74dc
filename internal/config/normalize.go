package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeStreamers()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CoverDir) == "" {
		c.Paths.CoverDir = defaultCoverDir
	}
	if c.Paths.CoverDir, err = expandPath(c.Paths.CoverDir); err != nil {
		return fmt.Errorf("paths.cover_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() {
	d := &c.Download
	d.Downloader = strings.ToLower(strings.TrimSpace(d.Downloader))
	if d.Downloader == "" {
		d.Downloader = defaultDownloader
	}
	d.ConsoleMirror = strings.ToLower(strings.TrimSpace(d.ConsoleMirror))
	if d.ConsoleMirror == "" {
		d.ConsoleMirror = defaultConsoleMirror
	}
	d.SegmentTime = strings.TrimSpace(d.SegmentTime)
	if d.SegmentTime != "" && d.FileSize > 0 {
		c.warnings = append(c.warnings, "download.segment_time and download.file_size are both set; segment_time takes precedence")
	}
	if d.QuitGraceSeconds <= 0 {
		d.QuitGraceSeconds = defaultQuitGraceSeconds
	}
	if d.CoverTimeout <= 0 {
		d.CoverTimeout = defaultCoverTimeout
	}
	if d.ReadTimeout <= 0 {
		d.ReadTimeout = defaultReadTimeout
	}
	d.UserAgent = strings.TrimSpace(d.UserAgent)
	if d.UserAgent == "" {
		d.UserAgent = defaultUserAgent
	}
	d.FFmpegBinary = strings.TrimSpace(d.FFmpegBinary)
	d.StreamlinkBinary = strings.TrimSpace(d.StreamlinkBinary)
}

func (c *Config) normalizeStreamers() {
	if c.Streamers == nil {
		c.Streamers = map[string]Streamer{}
	}
	for name, s := range c.Streamers {
		s.URL = strings.TrimSpace(s.URL)
		s.Platform = strings.ToLower(strings.TrimSpace(s.Platform))
		if s.Platform == "" {
			s.Platform = inferPlatform(s.URL)
		}
		s.Suffix = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s.Suffix)), ".")
		if s.Suffix == "" {
			s.Suffix = defaultSuffix
		}
		s.Downloader = strings.ToLower(strings.TrimSpace(s.Downloader))
		s.SegmentTime = strings.TrimSpace(s.SegmentTime)
		if s.SegmentTime != "" && s.FileSize > 0 {
			c.warnings = append(c.warnings, fmt.Sprintf("streamers.%s: segment_time and file_size are both set; segment_time takes precedence", name))
		}
		hooks := s.DownloadedProcessor[:0]
		for _, hook := range s.DownloadedProcessor {
			hook.Run = strings.TrimSpace(hook.Run)
			if hook.Run == "" {
				continue
			}
			hooks = append(hooks, hook)
		}
		s.DownloadedProcessor = hooks
		c.Streamers[name] = s
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("LIVECAP_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// inferPlatform picks the probe kind from the source URL when none is configured.
func inferPlatform(raw string) string {
	parsed, err := url.Parse(raw)
	if err == nil && strings.HasSuffix(strings.ToLower(parsed.Path), ".m3u8") {
		return "hls"
	}
	return "http"
}
