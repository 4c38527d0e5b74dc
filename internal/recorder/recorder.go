package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"livecap/internal/capture"
	"livecap/internal/config"
	"livecap/internal/cover"
	"livecap/internal/history"
	"livecap/internal/hooks"
	"livecap/internal/logging"
	"livecap/internal/naming"
	"livecap/internal/notifications"
	"livecap/internal/probe"
	"livecap/internal/process"
	"livecap/internal/services"
)

// Dispatcher runs a capture request to completion.
type Dispatcher interface {
	Capture(ctx context.Context, req capture.Request) (process.Outcome, error)
}

// CoverFetcher stores a run's cover image.
type CoverFetcher interface {
	Fetch(ctx context.Context, req cover.Request) (string, error)
}

// HookRunner executes post-capture commands.
type HookRunner interface {
	Run(ctx context.Context, commands []string, payload hooks.Payload) []hooks.Result
}

// HistoryRecorder persists finished runs.
type HistoryRecorder interface {
	Record(ctx context.Context, run history.Run) (int64, error)
}

// ChatCapturer records a stream's chat alongside the video. It runs detached
// from the capture and its failures never affect the capture outcome.
type ChatCapturer interface {
	CaptureChat(ctx context.Context, task Task, output string) error
}

// Dependencies are the collaborators a Recorder drives.
type Dependencies struct {
	Prober     probe.Prober
	Dispatcher Dispatcher
	Covers     CoverFetcher
	Hooks      HookRunner
	History    HistoryRecorder
	Notifier   notifications.Service
	Chat       ChatCapturer
}

// Recorder runs the capture loop for one task.
type Recorder struct {
	cfg       *config.Config
	task      Task
	deps      Dependencies
	formatter naming.Formatter
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
}

// New constructs a Recorder for task.
func New(cfg *config.Config, task Task, deps Dependencies, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	return &Recorder{
		cfg:       cfg,
		task:      task,
		deps:      deps,
		formatter: naming.New(task.FilenameTemplate),
		logger:    logging.NewComponentLogger(logger, "recorder"),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// run is the mutable state of one loop invocation.
type run struct {
	result   RunResult
	task     Task
	machine  *Machine
	announce bool
}

// Run executes the loop until the state machine terminates or ctx is
// cancelled. Capture failures are absorbed into the retry decisions; only
// cancellation and state machine violations end the loop with an error.
func (r *Recorder) Run(ctx context.Context) (RunResult, error) {
	runID := uuid.NewString()
	ctx = services.WithRequestID(services.WithTask(ctx, r.task.Name), runID)
	logger := logging.WithContext(ctx, r.logger)

	st := &run{
		task:    r.task,
		machine: NewMachine(r.task.Delay, r.task.DownloadMode),
		result: RunResult{
			RunID:        runID,
			Task:         r.task.Name,
			SourceURL:    r.task.SourceURL,
			Backend:      r.task.Backend,
			StartedAt:    r.now(),
			DownloadMode: r.task.DownloadMode,
		},
	}
	logger.Info("capture loop started",
		logging.String(logging.FieldEventType, "loop_started"),
		logging.String("source", r.task.SourceURL),
		logging.String(logging.FieldBackend, r.task.Backend),
		logging.Bool("download_mode", r.task.DownloadMode),
	)

	for {
		st.result.Attempts++
		ok, err := r.attempt(ctx, st)
		if err != nil {
			return r.abort(ctx, st, err)
		}
		if err := st.machine.AttemptFinished(ok); err != nil {
			return r.abort(ctx, st, err)
		}
		decision, err := st.machine.Decide()
		if err != nil {
			return r.abort(ctx, st, err)
		}
		r.logDecision(logger, st, decision)
		if decision.Terminal() {
			st.result.Success = decision.Success || st.result.Segments > 0
			break
		}
		if decision.Wait > 0 {
			if err := r.sleep(ctx, decision.Wait); err != nil {
				return r.abort(ctx, st, err)
			}
		}
		if decision.Next != StateProbing {
			if err := st.machine.Resume(); err != nil {
				return r.abort(ctx, st, err)
			}
		}
	}

	r.finish(ctx, st)
	return st.result, nil
}

// attempt performs one probe and capture. It returns an error only for
// cancellation; panics and failures become an unsuccessful attempt.
func (r *Recorder) attempt(ctx context.Context, st *run) (ok bool, err error) {
	actx := services.WithAttempt(ctx, st.result.Attempts)
	logger := logging.WithContext(actx, r.logger)
	defer func() {
		if p := recover(); p != nil {
			logging.ErrorWithContext(logger, "capture attempt panicked", "attempt_panic",
				logging.String("panic", fmt.Sprint(p)),
				logging.String("stack", string(debug.Stack())),
			)
			ok, err = false, nil
		}
	}()
	defer func() {
		if r.deps.Prober == nil {
			return
		}
		if cerr := probe.Release(r.deps.Prober); cerr != nil {
			logger.Debug("release prober", logging.Error(cerr))
		}
	}()

	stream, err := r.deps.Prober.Probe(actx, probe.Target{
		Name:         st.task.Name,
		URL:          st.task.SourceURL,
		Platform:     st.task.Platform,
		Headers:      st.task.Headers,
		DownloadMode: st.task.DownloadMode,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logger.Info("source not live", logging.Error(err))
		return false, nil
	}
	if err := st.machine.ProbeFinished(true); err != nil {
		logger.Error("state machine rejected probe result", logging.Error(err))
		return false, nil
	}
	st.task.StreamURL = stream.URL
	if stream.Title != "" {
		st.task.Title = stream.Title
	}
	if stream.CoverURL != "" {
		st.task.CoverURL = stream.CoverURL
	}
	if st.result.Title == "" {
		st.result.Title = st.task.Title
	}

	started := r.now()
	name, err := r.formatter.Format(st.task.Name, st.task.Title, started)
	if err != nil {
		logging.ErrorWithContext(logger, "cannot build file name", "naming_failed",
			logging.String(logging.FieldErrorHint, "adjust filename_prefix so it keeps at least one safe character"),
			logging.Error(err),
		)
		return false, nil
	}
	req := capture.Request{
		Backend:   st.task.Backend,
		StreamURL: stream.URL,
		Headers:   st.task.Headers,
		Output:    filepath.Join(r.cfg.Paths.WorkDir, name),
		Suffix:    st.task.Suffix,
		Segment:   st.task.Segment,
		ExtraArgs: st.task.ExtraArgs,
	}
	if !st.announce {
		st.announce = true
		r.publish(actx, notifications.EventCaptureStarted, notifications.Payload{"task": st.task.Name, "title": st.task.Title})
	}
	r.startChat(actx, st.task, req.Output)

	outcome, err := r.deps.Dispatcher.Capture(actx, req)
	final := Finalize(logger, req.PartPath())
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logging.WarnWithContext(logger, "capture failed", "capture_failed", logging.Error(err))
		return false, nil
	}
	if !outcome.Success {
		logger.Info("capture ended unsuccessfully", logging.Int("exit_code", outcome.ExitCode))
		return false, nil
	}
	if final != "" {
		st.result.Segments++
		st.result.Files = append(st.result.Files, final)
		if info, statErr := os.Stat(final); statErr == nil {
			st.result.Bytes += info.Size()
			logger.Info("segment saved",
				logging.String("path", final),
				logging.String("size", humanize.IBytes(uint64(info.Size()))),
			)
		}
	}
	return true, nil
}

// startChat launches the chat capturer detached from the attempt.
func (r *Recorder) startChat(ctx context.Context, task Task, output string) {
	if r.deps.Chat == nil {
		return
	}
	chatCtx := context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, r.logger)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				logger.Warn("chat capture panicked", logging.String("panic", fmt.Sprint(p)))
			}
		}()
		if err := r.deps.Chat.CaptureChat(chatCtx, task, output); err != nil {
			logger.Warn("chat capture failed", logging.Error(err))
		}
	}()
}

func (r *Recorder) logDecision(logger *slog.Logger, st *run, d Decision) {
	attrs := []logging.Attr{
		logging.String("rule", d.Rule),
		logging.String("next", d.Next.String()),
	}
	switch d.Next {
	case StateImmediateRetryWait:
		logger.Info(fmt.Sprintf("attempt failed, retry %d/%d in %s", d.Retry.RetryCount, MaxImmediateRetries, d.Wait), logging.Args(attrs...)...)
	case StateEndOfStreamWait:
		if d.FirstWindowCycle {
			logger.Info(fmt.Sprintf("stream may have ended, polling every %s for up to %ds", d.Wait, st.task.Delay), logging.Args(attrs...)...)
		}
		logger.Debug(fmt.Sprintf("grace window poll %d/%d", d.Retry.DelayRetryCount, d.Retry.DelayAllowance), logging.Args(attrs...)...)
	case StateTerminated:
		logger.Info("capture loop stopping", logging.Args(append(attrs, logging.Bool("success", d.Success))...)...)
	default:
		logger.Debug("attempt succeeded, probing again", logging.Args(attrs...)...)
	}
}

// abort records a run interrupted by cancellation or an internal error and
// returns the cause. Cover and hooks are skipped.
func (r *Recorder) abort(ctx context.Context, st *run, cause error) (RunResult, error) {
	st.result.FinishedAt = r.now()
	logger := logging.WithContext(ctx, r.logger)
	outcome := services.FailureOutcome(cause)
	if outcome == history.OutcomeCancelled {
		logger.Info("capture loop cancelled", logging.String(logging.FieldEventType, "loop_cancelled"))
	} else {
		logging.ErrorWithContext(logger, "capture loop aborted", "loop_aborted",
			logging.Error(cause),
			logging.String(logging.FieldImpact, "task stops until restarted"),
		)
	}
	r.record(context.WithoutCancel(ctx), st, outcome, cause)
	return st.result, fmt.Errorf("capture loop for %s: %w", st.task.Name, cause)
}

// finish runs the once-per-run steps after the loop terminated.
func (r *Recorder) finish(ctx context.Context, st *run) {
	logger := logging.WithContext(ctx, r.logger)
	if st.task.UseLiveCover && st.task.CoverURL != "" && r.deps.Covers != nil {
		name, err := r.formatter.Format(st.task.Name, st.task.Title, st.result.StartedAt)
		if err == nil {
			path, ferr := r.deps.Covers.Fetch(ctx, cover.Request{
				URL:      st.task.CoverURL,
				Platform: st.task.Platform,
				Task:     st.task.Name,
				Name:     name,
				Headers:  st.task.Headers,
			})
			if ferr != nil {
				logging.WarnWithContext(logger, "cover download failed", "cover_failed",
					logging.String(logging.FieldImpact, "run kept without cover"),
					logging.Error(ferr),
				)
			} else {
				st.result.CoverPath = path
			}
		}
	}
	if len(st.task.Hooks) > 0 && r.deps.Hooks != nil {
		r.deps.Hooks.Run(ctx, st.task.Hooks, hooks.NewPayload(st.task.Name, st.task.SourceURL, st.result.Title, st.result.StartedAt))
	}
	st.result.FinishedAt = r.now()

	outcome := history.OutcomeFailed
	switch {
	case st.result.DownloadMode && st.result.Success:
		outcome = history.OutcomeCompleted
	case st.result.Segments > 0:
		outcome = history.OutcomeEnded
	}
	r.record(ctx, st, outcome, nil)
	if st.result.Segments > 0 {
		r.publish(ctx, notifications.EventStreamEnded, notifications.Payload{
			"task":     st.task.Name,
			"duration": st.result.FinishedAt.Sub(st.result.StartedAt),
			"segments": st.result.Segments,
		})
	}
	logger.Info("capture loop finished",
		logging.String(logging.FieldEventType, "loop_finished"),
		logging.String("outcome", string(outcome)),
		logging.Int("attempts", st.result.Attempts),
		logging.Int("segments", st.result.Segments),
		logging.String("size", humanize.IBytes(uint64(st.result.Bytes))),
	)
}

func (r *Recorder) record(ctx context.Context, st *run, outcome history.Outcome, cause error) {
	if r.deps.History == nil {
		return
	}
	entry := history.Run{
		RunID:         st.result.RunID,
		Task:          st.result.Task,
		SourceURL:     st.result.SourceURL,
		Title:         st.result.Title,
		Backend:       st.result.Backend,
		StartedAt:     st.result.StartedAt,
		FinishedAt:    st.result.FinishedAt,
		CoverPath:     st.result.CoverPath,
		DownloadMode:  st.result.DownloadMode,
		Attempts:      st.result.Attempts,
		Segments:      st.result.Segments,
		BytesCaptured: st.result.Bytes,
		Outcome:       outcome,
	}
	if cause != nil {
		entry.ErrorMessage = cause.Error()
	}
	if _, err := r.deps.History.Record(ctx, entry); err != nil {
		logging.WithContext(ctx, r.logger).Warn("record run history failed", logging.Error(err))
	}
}

func (r *Recorder) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := r.deps.Notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, r.logger).Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
