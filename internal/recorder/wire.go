package recorder

import (
	"log/slog"
	"time"

	"livecap/internal/capture"
	"livecap/internal/config"
	"livecap/internal/cover"
	"livecap/internal/history"
	"livecap/internal/hooks"
	"livecap/internal/logging"
	"livecap/internal/nativedl"
	"livecap/internal/notifications"
	"livecap/internal/probe"
	"livecap/internal/process"
)

// NewFromConfig builds a Recorder for the named streamer with the standard
// collaborators. A nil registry selects the built-in probers; a nil store
// disables history.
func NewFromConfig(cfg *config.Config, name string, registry *probe.Registry, store *history.Store, logger *slog.Logger) (*Recorder, error) {
	task, err := TaskFromConfig(cfg, name)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = probe.Default(nil)
	}
	prober, err := registry.Lookup(task.Platform)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	supervisor := process.New(
		process.WithLogger(logging.NewComponentLogger(logger, "process")),
		process.WithMirror(process.MirrorWriter(cfg.Download.ConsoleMirror)),
		process.WithQuitGrace(time.Duration(cfg.Download.QuitGraceSeconds)*time.Second),
	)
	native := nativedl.NewFromConfig(cfg, logging.NewComponentLogger(logger, "nativedl"))
	notifier := notifications.NewService(cfg)

	deps := Dependencies{
		Prober:     prober,
		Dispatcher: capture.NewDispatcher(cfg, supervisor, native, logger),
		Covers:     cover.New(cfg.Paths.CoverDir, time.Duration(cfg.Download.CoverTimeout)*time.Second, logging.NewComponentLogger(logger, "cover")),
		Hooks:      hooks.NewInvoker(logger, notifier),
		Notifier:   notifier,
	}
	if store != nil {
		deps.History = store
	}
	return New(cfg, task, deps, logger), nil
}
