package recorder

import (
	"strings"
	"time"

	"livecap/internal/config"
	"livecap/internal/services"
)

// Task is the static description of one capture loop plus the fields the
// loop fills in while it runs.
type Task struct {
	Name             string
	SourceURL        string
	Platform         string
	Suffix           string
	Backend          string
	DownloadMode     bool
	FilenameTemplate string
	UseLiveCover     bool
	ExtraArgs        []string
	Segment          config.SegmentPolicy
	Hooks            []string
	Headers          map[string]string
	Delay            int

	StreamURL string
	Title     string
	CoverURL  string
}

// TaskFromConfig resolves the named streamer's effective settings.
func TaskFromConfig(cfg *config.Config, name string) (Task, error) {
	s, ok := cfg.Streamer(name)
	if !ok {
		return Task{}, services.Wrap(services.ErrNotFound, "recorder", "task", "unknown streamer "+name, nil)
	}
	var hooks []string
	for _, h := range s.DownloadedProcessor {
		if run := strings.TrimSpace(h.Run); run != "" {
			hooks = append(hooks, run)
		}
	}
	return Task{
		Name:             name,
		SourceURL:        s.URL,
		Platform:         s.Platform,
		Suffix:           s.Suffix,
		Backend:          cfg.Backend(name),
		DownloadMode:     s.DownloadMode,
		FilenameTemplate: cfg.FilenameTemplate(name),
		UseLiveCover:     cfg.UseLiveCover(name),
		ExtraArgs:        append([]string(nil), s.OptArgs...),
		Segment:          cfg.SegmentPolicy(name),
		Hooks:            hooks,
		Headers:          cfg.Headers(name),
		Delay:            cfg.Download.Delay,
	}, nil
}

// RunResult is the record produced once per loop invocation.
type RunResult struct {
	RunID        string
	Task         string
	SourceURL    string
	Title        string
	Backend      string
	StartedAt    time.Time
	FinishedAt   time.Time
	CoverPath    string
	DownloadMode bool
	Attempts     int
	Segments     int
	Bytes        int64
	Files        []string
	Success      bool
}
