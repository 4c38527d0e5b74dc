package capture

import (
	"context"
	"log/slog"
	"sort"

	"livecap/internal/config"
	"livecap/internal/logging"
	"livecap/internal/process"
	"livecap/internal/services"
)

var defaultNativeSize = config.DefaultSegmentSize(config.BackendNative)

// Dispatcher routes a capture request to the configured backend.
type Dispatcher struct {
	backends map[string]Backend
	logger   *slog.Logger
}

// NewDispatcher wires the three built-in backends.
func NewDispatcher(cfg *config.Config, runner Runner, native NativeDownloader, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "capture")
	ffmpeg := &ffmpegBackend{runner: runner, binary: cfg.FFmpegBinary()}
	backends := []Backend{
		ffmpeg,
		&streamlinkBackend{
			runner:     runner,
			streamlink: cfg.StreamlinkBinary(),
			ffmpeg:     cfg.FFmpegBinary(),
			fallback:   ffmpeg,
			logger:     logger,
		},
	}
	if native != nil {
		backends = append(backends, &nativeBackend{downloader: native, logger: logger})
	}
	return NewDispatcherWithBackends(logger, backends...)
}

// NewDispatcherWithBackends builds a dispatcher over an explicit backend set.
func NewDispatcherWithBackends(logger *slog.Logger, backends ...Backend) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Dispatcher{backends: make(map[string]Backend, len(backends)), logger: logger}
	for _, b := range backends {
		d.backends[b.Name()] = b
	}
	return d
}

// Names lists the registered backends.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.backends))
	for name := range d.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capture runs req through req.Backend and blocks until the capture ends.
func (d *Dispatcher) Capture(ctx context.Context, req Request) (process.Outcome, error) {
	backend, ok := d.backends[req.Backend]
	if !ok {
		return process.Outcome{ExitCode: -1}, services.Wrap(services.ErrConfiguration, "capture", "dispatch", "unknown backend "+req.Backend, nil)
	}
	logger := logging.WithContext(services.WithBackend(ctx, backend.Name()), d.logger)
	logger.Info("capture starting",
		logging.String(logging.FieldEventType, "capture_started"),
		logging.String("output", req.PartPath()),
	)
	outcome, err := backend.Capture(ctx, req)
	if err != nil {
		return outcome, err
	}
	logger.Info("capture finished",
		logging.String(logging.FieldEventType, "capture_finished"),
		logging.Bool("success", outcome.Success),
		logging.Int("exit_code", outcome.ExitCode),
	)
	return outcome, nil
}
