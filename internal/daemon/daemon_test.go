package daemon_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"livecap/internal/daemon"
	"livecap/internal/history"
	"livecap/internal/recorder"
	"livecap/internal/services"
	"livecap/internal/testsupport"
)

type loopCounter struct {
	mu    sync.Mutex
	runs  map[string]int
	block bool
}

func (c *loopCounter) factory(name string, _ *slog.Logger) (daemon.Loop, error) {
	return loopFunc(func(ctx context.Context) (recorder.RunResult, error) {
		c.mu.Lock()
		c.runs[name]++
		c.mu.Unlock()
		if c.block {
			<-ctx.Done()
			return recorder.RunResult{}, ctx.Err()
		}
		return recorder.RunResult{RunID: name, Success: true}, nil
	}), nil
}

func (c *loopCounter) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[name]
}

type loopFunc func(ctx context.Context) (recorder.RunResult, error)

func (f loopFunc) Run(ctx context.Context) (recorder.RunResult, error) { return f(ctx) }

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStreamer("alpha", "http://127.0.0.1:1/a"),
		testsupport.WithStreamer("beta", "http://127.0.0.1:1/b"),
	)
	counter := &loopCounter{runs: map[string]int{}, block: true}
	d, err := daemon.New(cfg, nil, nil, daemon.WithLoopFactory(counter.factory))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if len(status.Tasks) != 2 || status.Tasks[0].Name != "alpha" || status.Tasks[1].Name != "beta" {
		t.Fatalf("unexpected tasks: %+v", status.Tasks)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status()
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	for _, task := range status.Tasks {
		if task.Active {
			t.Fatalf("task %s still active after stop", task.Name)
		}
		if task.LastError != "" {
			t.Fatalf("cancellation reported as error for %s: %s", task.Name, task.LastError)
		}
	}
}

func TestSecondDaemonInstanceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStreamer("alpha", "http://127.0.0.1:1/a"))
	counter := &loopCounter{runs: map[string]int{}, block: true}

	first, err := daemon.New(cfg, nil, nil, daemon.WithLoopFactory(counter.factory))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	second, err := daemon.New(cfg, nil, nil, daemon.WithLoopFactory(counter.factory))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { second.Close() })
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonRestartsFinishedLoops(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStreamer("alpha", "http://127.0.0.1:1/a"))
	counter := &loopCounter{runs: map[string]int{}}
	d, err := daemon.New(cfg, nil, nil,
		daemon.WithLoopFactory(counter.factory),
		daemon.WithRestartInterval(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for counter.count("alpha") < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("loop restarted %d times, want at least 3", counter.count("alpha"))
		}
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()

	status := d.Status()
	if status.Tasks[0].Runs < 3 || !status.Tasks[0].LastSuccess {
		t.Fatalf("unexpected task status: %+v", status.Tasks[0])
	}
}

func TestDaemonSkipsLockedTask(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStreamer("alpha", "http://127.0.0.1:1/a"))
	lock, err := daemon.AcquireTaskLock(cfg, "alpha")
	if err != nil {
		t.Fatalf("AcquireTaskLock: %v", err)
	}
	defer lock.Unlock()

	if _, err := daemon.AcquireTaskLock(cfg, "alpha"); err == nil {
		t.Fatal("expected second task lock to fail")
	}

	counter := &loopCounter{runs: map[string]int{}, block: true}
	d, err := daemon.New(cfg, nil, nil, daemon.WithLoopFactory(counter.factory))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	d.Wait()
	if counter.count("alpha") != 0 {
		t.Fatalf("locked task ran %d times", counter.count("alpha"))
	}
}

func TestDaemonBadFactoryStopsTask(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStreamer("alpha", "http://127.0.0.1:1/a"))
	store := testsupport.MustOpenHistory(t, cfg)
	d, err := daemon.New(cfg, store, nil, daemon.WithLoopFactory(func(string, *slog.Logger) (daemon.Loop, error) {
		return nil, services.Wrap(services.ErrConfiguration, "recorder", "build", "bad streamer", nil)
	}))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	d.Wait()
	task := d.Status().Tasks[0]
	if task.Runs != 0 || task.LastError == "" {
		t.Fatalf("unexpected task status %+v", task)
	}
	runs, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].Outcome != history.OutcomeInvalid || runs[0].Task != "alpha" {
		t.Fatalf("unexpected history %+v", runs)
	}
}

func TestDaemonRequiresStreamers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected error without streamers")
	}
}
