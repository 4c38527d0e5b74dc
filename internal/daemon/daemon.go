package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"livecap/internal/config"
	"livecap/internal/history"
	"livecap/internal/logging"
	"livecap/internal/probe"
	"livecap/internal/recorder"
	"livecap/internal/services"
)

// Loop is one capture loop invocation for a task.
type Loop interface {
	Run(ctx context.Context) (recorder.RunResult, error)
}

// LoopFactory builds the loop for the named task.
type LoopFactory func(name string, logger *slog.Logger) (Loop, error)

// Daemon runs every configured streamer's capture loop and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	base     *slog.Logger
	logger   *slog.Logger
	store    *history.Store
	registry *probe.Registry
	factory  LoopFactory
	restart  time.Duration

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*TaskStatus
}

// TaskStatus reports the supervision state of one task.
type TaskStatus struct {
	Name        string
	Active      bool
	Runs        int
	LastRunID   string
	LastSuccess bool
	LastError   string
	LastEnded   time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Tasks        []TaskStatus
	HistoryPath  string
	LockFilePath string
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithLoopFactory replaces the recorder construction used for each task.
func WithLoopFactory(f LoopFactory) Option {
	return func(d *Daemon) { d.factory = f }
}

// WithRestartInterval overrides the pause between a finished loop and the
// next one for the same task.
func WithRestartInterval(interval time.Duration) Option {
	return func(d *Daemon) { d.restart = interval }
}

// New constructs a daemon. store may be nil to disable run history.
func New(cfg *config.Config, store *history.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		registry: probe.Default(nil),
		restart:  time.Duration(cfg.Daemon.RestartInterval) * time.Second,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		tasks:    make(map[string]*TaskStatus),
	}
	d.factory = d.recorderLoop
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Daemon) recorderLoop(name string, logger *slog.Logger) (Loop, error) {
	return recorder.NewFromConfig(d.cfg, name, d.registry, d.store, logger)
}

// Start acquires the daemon lock and launches one supervised loop per
// configured streamer.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := ensureDir(filepath.Dir(d.lockPath)); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another livecap daemon instance is already running")
	}

	names := d.cfg.StreamerNames()
	if len(names) == 0 {
		_ = d.lock.Unlock()
		return services.Wrap(services.ErrConfiguration, "daemon", "start", "No streamers configured", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.ctx, d.cancel = runCtx, cancel
	d.running.Store(true)
	for _, name := range names {
		d.setStatus(name, func(*TaskStatus) {})
		d.wg.Go(func() { d.supervise(runCtx, name) })
	}
	d.logger.Info("livecap daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("tasks", len(names)),
	)
	return nil
}

// supervise keeps a task's loop running until ctx is cancelled, pausing for
// the restart interval whenever a loop terminates on its own.
func (d *Daemon) supervise(ctx context.Context, name string) {
	logger, closer, err := logging.TaskLogger(d.base, d.cfg, name)
	if err != nil {
		d.logger.Warn("task log unavailable; using daemon log",
			logging.String("task", name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "task_log_unavailable"),
		)
		logger, closer = d.base, nil
	}
	if closer != nil {
		defer closer.Close()
	}

	lock, err := AcquireTaskLock(d.cfg, name)
	if err != nil {
		logging.WarnWithContext(logger, "task skipped", "task_locked",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other livecap process recording this streamer"),
			logging.String(logging.FieldImpact, "streamer is not recorded by this daemon"),
		)
		return
	}
	defer lock.Unlock()

	for ctx.Err() == nil {
		loop, err := d.factory(name, logger)
		if err != nil {
			logging.ErrorWithContext(logger, "task loop could not be built", "task_invalid",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix the streamer entry in the config file"),
			)
			d.recordRejected(ctx, logger, name, err)
			return
		}

		d.setStatus(name, func(s *TaskStatus) { s.Active = true })
		result, err := loop.Run(ctx)
		d.setStatus(name, func(s *TaskStatus) {
			s.Active = false
			s.Runs++
			s.LastRunID = result.RunID
			s.LastSuccess = result.Success
			s.LastEnded = time.Now()
			s.LastError = ""
			if err != nil && ctx.Err() == nil {
				s.LastError = err.Error()
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("task loop failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "task_loop_failed"),
			)
		}
		if d.restart <= 0 {
			continue
		}
		logger.Debug("task loop restarting", logging.Duration("after", d.restart))
		t := time.NewTimer(d.restart)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// recordRejected stores a history row for a streamer whose loop could not be
// built so the failure is visible in `livecap history`.
func (d *Daemon) recordRejected(ctx context.Context, logger *slog.Logger, name string, cause error) {
	now := time.Now()
	runID := uuid.NewString()
	d.setStatus(name, func(s *TaskStatus) {
		s.LastRunID = runID
		s.LastError = cause.Error()
		s.LastEnded = now
	})
	if d.store == nil {
		return
	}
	entry := history.Run{
		RunID:        runID,
		Task:         name,
		StartedAt:    now,
		FinishedAt:   now,
		Outcome:      services.FailureOutcome(cause),
		ErrorMessage: cause.Error(),
	}
	if streamer, ok := d.cfg.Streamers[name]; ok {
		entry.SourceURL = streamer.URL
	}
	if _, err := d.store.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("record rejected task failed", logging.Error(err))
	}
}

func (d *Daemon) setStatus(name string, update func(*TaskStatus)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.tasks[name]
	if !ok {
		s = &TaskStatus{Name: name}
		d.tasks[name] = s
	}
	update(s)
}

// Stop cancels every task loop, waits for them to finish, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("livecap daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Wait blocks until every task loop has returned.
func (d *Daemon) Wait() {
	d.wg.Wait()
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	for _, platform := range d.registry.Platforms() {
		if p, err := d.registry.Lookup(platform); err == nil {
			_ = probe.Release(p)
		}
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	tasks := make([]TaskStatus, 0, len(d.tasks))
	for _, name := range d.cfg.StreamerNames() {
		if s, ok := d.tasks[name]; ok {
			tasks = append(tasks, *s)
		}
	}
	d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		Tasks:        tasks,
		HistoryPath:  d.cfg.HistoryPath(),
		LockFilePath: d.lockPath,
	}
}

// TaskLockPath returns the lock file guarding one streamer against
// concurrent recorders.
func TaskLockPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Paths.LogDir, "locks", name+".lock")
}

// AcquireTaskLock takes the per-streamer lock without blocking.
func AcquireTaskLock(cfg *config.Config, name string) (*flock.Flock, error) {
	path := TaskLockPath(cfg, name)
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire task lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("streamer %q is already being recorded", name)
	}
	return lock, nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	return nil
}
