package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"livecap/internal/logging"
	"livecap/internal/services"
)

var command = exec.Command

const (
	defaultQuitGrace = 30 * time.Second
	// drainTimeout bounds how long output is read after the child exits, in
	// case a detached descendant still holds the pipe open.
	drainTimeout = 2 * time.Second
	// upstreamGrace bounds how long a relay source may outlive its consumer.
	upstreamGrace = 5 * time.Second
)

// Command describes one external program invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Outcome reports how a supervised process ended. Success is true iff the
// process exited with code 0.
type Outcome struct {
	Success  bool
	ExitCode int
}

// Supervisor runs capture tools to completion, forwarding their output to
// the logger and the console mirror and stopping them cleanly on cancellation.
type Supervisor struct {
	logger    *slog.Logger
	mirror    io.Writer
	mirrorMu  sync.Mutex
	quitGrace time.Duration
	sampler   *logging.ProgressSampler
	samplerMu sync.Mutex
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the diagnostic sink for process output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMirror copies every output line to w. A nil writer disables mirroring.
func WithMirror(w io.Writer) Option {
	return func(s *Supervisor) { s.mirror = w }
}

// WithQuitGrace sets how long a process may take to exit after the quit
// request before its process group is killed.
func WithQuitGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.quitGrace = d
		}
	}
}

// New constructs a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:    logging.NewNop(),
		quitGrace: defaultQuitGrace,
		sampler:   logging.NewProgressSampler(time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func applySpec(cmd *exec.Cmd, spec Command) {
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		base := cmd.Env
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(base, spec.Env...)
	}
	setProcessGroup(cmd)
}

// proc is one started child with its merged output stream.
type proc struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	output *os.File
	exited chan struct{}
	err    error
}

func (s *Supervisor) start(spec Command, stdin *os.File, wantStdin bool) (*proc, error) {
	cmd := command(spec.Name, spec.Args...)
	applySpec(cmd, spec)

	out, outWriter, err := os.Pipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "process", "pipe", spec.Name, err)
	}
	cmd.Stdout = outWriter
	cmd.Stderr = outWriter

	p := &proc{name: filepath.Base(spec.Name), cmd: cmd, output: out, exited: make(chan struct{})}
	if stdin != nil {
		cmd.Stdin = stdin
	} else if wantStdin {
		p.stdin, err = cmd.StdinPipe()
		if err != nil {
			_ = out.Close()
			_ = outWriter.Close()
			return nil, services.Wrap(services.ErrExternalTool, "process", "stdin", spec.Name, err)
		}
	}

	if err := cmd.Start(); err != nil {
		_ = out.Close()
		_ = outWriter.Close()
		return nil, services.Wrap(services.ErrExternalTool, "process", "start", spec.Name, err)
	}
	_ = outWriter.Close()

	go func() {
		p.err = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

func (p *proc) outcome() Outcome {
	if p.err == nil {
		return Outcome{Success: true, ExitCode: 0}
	}
	var exitErr *exec.ExitError
	if errors.As(p.err, &exitErr) {
		return Outcome{ExitCode: exitErr.ExitCode()}
	}
	return Outcome{ExitCode: -1}
}

func (p *proc) alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Run starts spec and blocks until it exits. A non-zero exit is reported in
// the Outcome, not as an error. When ctx is cancelled the process is asked to
// quit, then killed after the grace period, and the context error is returned.
func (s *Supervisor) Run(ctx context.Context, spec Command) (Outcome, error) {
	s.resetProgress()
	p, err := s.start(spec, nil, true)
	if err != nil {
		return Outcome{ExitCode: -1}, err
	}
	s.logger.Debug("process started", logging.String("command", spec.String()), logging.Int("pid", p.cmd.Process.Pid))

	drained := s.consume(p, "")
	cancelled := s.supervise(ctx, p)
	s.finishDrain(p, drained)

	outcome := p.outcome()
	s.logger.Debug("process exited", logging.String("command", p.name), logging.Int("exit_code", outcome.ExitCode))
	if cancelled {
		return outcome, fmt.Errorf("%s stopped: %w", p.name, ctx.Err())
	}
	return outcome, nil
}

// RunPipeline runs upstream with its stdout connected to downstream's stdin.
// Only downstream decides the Outcome; upstream output is forwarded for
// diagnostics and upstream is reaped once downstream has exited.
func (s *Supervisor) RunPipeline(ctx context.Context, upstream, downstream Command) (Outcome, error) {
	s.resetProgress()
	relayOut, relayIn, err := os.Pipe()
	if err != nil {
		return Outcome{ExitCode: -1}, services.Wrap(services.ErrExternalTool, "process", "pipe", "relay", err)
	}

	src, err := s.startWithStdout(upstream, relayIn)
	_ = relayIn.Close()
	if err != nil {
		_ = relayOut.Close()
		return Outcome{ExitCode: -1}, err
	}
	sink, err := s.start(downstream, relayOut, false)
	_ = relayOut.Close()
	if err != nil {
		terminateGroup(src.cmd.Process, src.exited)
		<-src.exited
		_ = src.output.Close()
		return Outcome{ExitCode: -1}, err
	}
	s.logger.Debug("relay started",
		logging.String("upstream", upstream.String()),
		logging.String("downstream", downstream.String()),
	)

	srcDrained := s.consume(src, src.name)
	sinkDrained := s.consume(sink, "")
	cancelled := s.supervise(ctx, sink)
	s.finishDrain(sink, sinkDrained)

	select {
	case <-src.exited:
	case <-time.After(upstreamGrace):
		s.logger.Debug("relay source still running; terminating", logging.String("command", src.name))
		terminateGroup(src.cmd.Process, src.exited)
		<-src.exited
	}
	s.finishDrain(src, srcDrained)

	outcome := sink.outcome()
	s.logger.Debug("relay exited",
		logging.Int("exit_code", outcome.ExitCode),
		logging.Int("upstream_exit_code", src.outcome().ExitCode),
	)
	if cancelled {
		return outcome, fmt.Errorf("%s stopped: %w", sink.name, ctx.Err())
	}
	return outcome, nil
}

// startWithStdout starts a relay source whose stdout feeds w and whose
// stderr is captured for diagnostics.
func (s *Supervisor) startWithStdout(spec Command, w *os.File) (*proc, error) {
	cmd := command(spec.Name, spec.Args...)
	applySpec(cmd, spec)

	errOut, errWriter, err := os.Pipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "process", "pipe", spec.Name, err)
	}
	cmd.Stdout = w
	cmd.Stderr = errWriter
	if err := cmd.Start(); err != nil {
		_ = errOut.Close()
		_ = errWriter.Close()
		return nil, services.Wrap(services.ErrExternalTool, "process", "start", spec.Name, err)
	}
	_ = errWriter.Close()

	p := &proc{name: filepath.Base(spec.Name), cmd: cmd, output: errOut, exited: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

// supervise waits for p to exit, handling cancellation. It reports whether
// the exit was forced by ctx.
func (s *Supervisor) supervise(ctx context.Context, p *proc) bool {
	select {
	case <-p.exited:
		return false
	case <-ctx.Done():
	}

	s.logger.Info("stopping capture process", logging.String("command", p.name), logging.Duration("grace", s.quitGrace))
	s.stop(p)

	timer := time.NewTimer(s.quitGrace)
	defer timer.Stop()
	select {
	case <-p.exited:
	case <-timer.C:
		logging.WarnWithContext(s.logger, "capture process ignored quit request; killing", "process_kill",
			logging.String("command", p.name),
			logging.String(logging.FieldImpact, "the partial file may lack a trailer"),
			logging.String(logging.FieldErrorHint, "raise download.quit_grace_seconds if this repeats"),
		)
		terminateGroup(p.cmd.Process, p.exited)
		<-p.exited
	}
	return true
}

// stop asks p to finish: "q" on stdin when available, an interrupt otherwise.
func (s *Supervisor) stop(p *proc) {
	if !gracefulQuitSupported {
		_ = p.cmd.Process.Kill()
		return
	}
	if p.stdin != nil {
		if _, err := io.WriteString(p.stdin, "q"); err == nil {
			return
		}
	}
	interruptGroup(p.cmd.Process)
}

// consume forwards each output line of p and returns a channel closed once
// the stream is exhausted.
func (s *Supervisor) consume(p *proc, prefix string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range Lines(p.output) {
			s.forward(prefix, line)
		}
	}()
	return done
}

// finishDrain waits for the output reader after the child exited, closing the
// pipe if a descendant keeps it open.
func (s *Supervisor) finishDrain(p *proc, drained <-chan struct{}) {
	<-p.exited
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		_ = p.output.Close()
		<-drained
	}
	_ = p.output.Close()
	if p.stdin != nil {
		_ = p.stdin.Close()
	}
}

func (s *Supervisor) forward(prefix, line string) {
	if prefix != "" {
		line = prefix + ": " + line
	}
	s.logger.Debug(line)

	if progress, ok := ParseProgress(line); ok {
		s.samplerMu.Lock()
		emit := s.sampler.ShouldLog(progress.Position, "")
		s.samplerMu.Unlock()
		if emit {
			s.logger.Info("capture progress",
				logging.String("captured", humanize.IBytes(uint64(progress.Size))),
				logging.Duration("position", progress.Position.Truncate(time.Second)),
			)
		}
	}

	if s.mirror != nil {
		s.mirrorMu.Lock()
		_, _ = io.WriteString(s.mirror, line+"\n")
		s.mirrorMu.Unlock()
	}
}

// resetProgress restarts progress sampling for a newly launched process.
func (s *Supervisor) resetProgress() {
	s.samplerMu.Lock()
	s.sampler.Reset()
	s.samplerMu.Unlock()
}
