package capture

import (
	"context"
	"errors"
	"log/slog"

	"livecap/internal/config"
	"livecap/internal/logging"
	"livecap/internal/nativedl"
	"livecap/internal/process"
)

// Runner supervises external capture processes.
type Runner interface {
	Run(ctx context.Context, cmd process.Command) (process.Outcome, error)
	RunPipeline(ctx context.Context, upstream, downstream process.Command) (process.Outcome, error)
}

// NativeDownloader is the in-process download capability.
type NativeDownloader interface {
	Download(ctx context.Context, req nativedl.Request) (nativedl.Result, error)
}

// Backend is one capture strategy.
type Backend interface {
	Name() string
	Capture(ctx context.Context, req Request) (process.Outcome, error)
}

type ffmpegBackend struct {
	runner Runner
	binary string
}

func (b *ffmpegBackend) Name() string { return config.BackendFFmpeg }

func (b *ffmpegBackend) Capture(ctx context.Context, req Request) (process.Outcome, error) {
	return b.runner.Run(ctx, process.Command{Name: b.binary, Args: FFmpegArgs(req)})
}

type streamlinkBackend struct {
	runner     Runner
	streamlink string
	ffmpeg     string
	fallback   Backend
	logger     *slog.Logger
}

func (b *streamlinkBackend) Name() string { return config.BackendStreamlink }

func (b *streamlinkBackend) Capture(ctx context.Context, req Request) (process.Outcome, error) {
	if pathHas(req.StreamURL, ".flv") {
		b.logger.Debug("flv source, capturing with ffmpeg directly")
		return b.fallback.Capture(ctx, req)
	}
	upstream := process.Command{Name: b.streamlink, Args: StreamlinkArgs(req)}
	downstream := process.Command{Name: b.ffmpeg, Args: RelayArgs(req)}
	return b.runner.RunPipeline(ctx, upstream, downstream)
}

type nativeBackend struct {
	downloader NativeDownloader
	logger     *slog.Logger
}

func (b *nativeBackend) Name() string { return config.BackendNative }

// Capture maps the downloader's result onto a process outcome: exit code 0
// on success and 1 on any failure other than cancellation.
func (b *nativeBackend) Capture(ctx context.Context, req Request) (process.Outcome, error) {
	policy := req.Segment
	if policy.IsZero() {
		policy.Size = defaultNativeSize
	}
	_, err := b.downloader.Download(ctx, nativedl.Request{
		URL:     req.StreamURL,
		Headers: req.Headers,
		Path:    req.PartPath(),
		Segment: policy,
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return process.Outcome{ExitCode: -1}, err
		}
		logging.WarnWithContext(b.logger, "native capture failed", "capture_failed",
			logging.String(logging.FieldErrorHint, "check the stream URL and network reachability"),
			logging.Error(err),
		)
		return process.Outcome{ExitCode: 1}, nil
	}
	return process.Outcome{Success: true}, nil
}
