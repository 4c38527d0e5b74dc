package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"livecap/internal/textutil"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateStreamers(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"download.quit_grace_seconds":   c.Download.QuitGraceSeconds,
		"download.cover_timeout":        c.Download.CoverTimeout,
		"download.read_timeout":         c.Download.ReadTimeout,
		"daemon.restart_interval":       c.Daemon.RestartInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDownload() error {
	if !validBackend(c.Download.Downloader) {
		return fmt.Errorf("download.downloader must be one of native, streamlink, ffmpeg (got %q)", c.Download.Downloader)
	}
	if c.Download.Delay < 0 {
		return errors.New("download.delay must be >= 0")
	}
	if c.Download.FileSize < 0 {
		return errors.New("download.file_size must be >= 0")
	}
	if c.Download.SegmentTime != "" {
		if _, err := ParseClock(c.Download.SegmentTime); err != nil {
			return fmt.Errorf("download.segment_time: %w", err)
		}
	}
	switch c.Download.ConsoleMirror {
	case MirrorAuto, MirrorAlways, MirrorNever:
	default:
		return fmt.Errorf("download.console_mirror must be one of auto, always, never (got %q)", c.Download.ConsoleMirror)
	}
	return nil
}

func (c *Config) validateStreamers() error {
	for _, name := range c.StreamerNames() {
		s := c.Streamers[name]
		prefix := "streamers." + name
		if strings.TrimSpace(name) == "" {
			return errors.New("streamers: name must not be empty")
		}
		if cleaned, err := textutil.ValidFileName(name); err != nil || cleaned != name {
			return fmt.Errorf("streamers: name %q must be usable as a file name (no path separators or reserved characters)", name)
		}
		if s.URL == "" {
			return fmt.Errorf("%s.url must be set", prefix)
		}
		parsed, err := url.Parse(s.URL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("%s.url must be an http(s) URL (got %q)", prefix, s.URL)
		}
		if s.Downloader != "" && !validBackend(s.Downloader) {
			return fmt.Errorf("%s.downloader must be one of native, streamlink, ffmpeg (got %q)", prefix, s.Downloader)
		}
		if s.FileSize < 0 {
			return fmt.Errorf("%s.file_size must be >= 0", prefix)
		}
		if s.SegmentTime != "" {
			if _, err := ParseClock(s.SegmentTime); err != nil {
				return fmt.Errorf("%s.segment_time: %w", prefix, err)
			}
		}
		for _, r := range s.Suffix {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				return fmt.Errorf("%s.suffix must be alphanumeric (got %q)", prefix, s.Suffix)
			}
		}
	}
	return nil
}

func validBackend(value string) bool {
	switch value {
	case BackendNative, BackendStreamlink, BackendFFmpeg:
		return true
	default:
		return false
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
