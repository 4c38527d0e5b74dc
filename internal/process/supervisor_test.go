package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// useHelper routes every command name to a helper-process mode.
func useHelper(t *testing.T, modes map[string]string) *[][]string {
	t.Helper()
	var (
		mu       sync.Mutex
		captured [][]string
	)
	original := command
	command = func(name string, args ...string) *exec.Cmd {
		mu.Lock()
		captured = append(captured, append([]string{name}, args...))
		mu.Unlock()
		cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "PROCESS_HELPER_MODE="+modes[name])
		return cmd
	}
	t.Cleanup(func() {
		command = original
	})
	return &captured
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process group signalling is unix-only")
	}
}

func TestRunForwardsMergedOutput(t *testing.T) {
	captured := useHelper(t, map[string]string{"ffmpeg": "lines"})
	mirror := &syncBuffer{}
	sup := New(WithMirror(mirror))

	outcome, err := sup.Run(context.Background(), Command{Name: "ffmpeg", Args: []string{"-i", "in"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !outcome.Success || outcome.ExitCode != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	out := mirror.String()
	for _, want := range []string{"stdout line", "stderr line", "time=00:01:05.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in mirrored output %q", want, out)
		}
	}
	if got := strings.Join((*captured)[0], " "); got != "ffmpeg -i in" {
		t.Fatalf("unexpected command: %q", got)
	}
}

func TestRunReportsExitCode(t *testing.T) {
	useHelper(t, map[string]string{"ffmpeg": "fail"})
	outcome, err := New().Run(context.Background(), Command{Name: "ffmpeg"})
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if outcome.Success || outcome.ExitCode != 3 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestRunStartFailure(t *testing.T) {
	original := command
	command = func(name string, args ...string) *exec.Cmd {
		return exec.Command("/nonexistent/livecap-test-binary")
	}
	t.Cleanup(func() { command = original })

	outcome, err := New().Run(context.Background(), Command{Name: "ffmpeg"})
	if err == nil {
		t.Fatal("expected start error")
	}
	if outcome.Success {
		t.Fatal("start failure must not be success")
	}
}

func TestRunCancelSendsQuit(t *testing.T) {
	skipOnWindows(t)
	useHelper(t, map[string]string{"ffmpeg": "quit"})
	mirror := &syncBuffer{}
	sup := New(WithMirror(mirror), WithQuitGrace(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		waitFor(t, mirror, "ready")
		cancel()
	}()

	start := time.Now()
	outcome, err := sup.Run(ctx, Command{Name: "ffmpeg"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !outcome.Success {
		t.Fatalf("expected clean exit after quit, got %+v", outcome)
	}
	if !strings.Contains(mirror.String(), "got q") {
		t.Fatalf("expected quit acknowledgement, got %q", mirror.String())
	}
	if time.Since(start) > 4*time.Second {
		t.Fatal("quit should not wait for the grace period")
	}
}

func TestRunCancelKillsAfterGrace(t *testing.T) {
	skipOnWindows(t)
	useHelper(t, map[string]string{"ffmpeg": "stubborn"})
	mirror := &syncBuffer{}
	sup := New(WithMirror(mirror), WithQuitGrace(200*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		waitFor(t, mirror, "ready")
		cancel()
	}()

	outcome, err := sup.Run(ctx, Command{Name: "ffmpeg"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if outcome.Success {
		t.Fatalf("killed process must not report success: %+v", outcome)
	}
}

func TestRunPipelineUsesDownstreamOutcome(t *testing.T) {
	useHelper(t, map[string]string{"streamlink": "produce", "ffmpeg": "consume"})
	mirror := &syncBuffer{}
	sup := New(WithMirror(mirror))

	outcome, err := sup.RunPipeline(context.Background(), Command{Name: "streamlink"}, Command{Name: "ffmpeg"})
	if err != nil {
		t.Fatalf("RunPipeline failed: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	out := mirror.String()
	for _, want := range []string{"got: chunk-1", "got: chunk-2", "streamlink: source log"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestRunPipelineDownstreamFailure(t *testing.T) {
	useHelper(t, map[string]string{"streamlink": "produce", "ffmpeg": "fail"})
	outcome, err := New().RunPipeline(context.Background(), Command{Name: "streamlink"}, Command{Name: "ffmpeg"})
	if err != nil {
		t.Fatalf("RunPipeline failed: %v", err)
	}
	if outcome.Success || outcome.ExitCode != 3 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestRunPipelineCancel(t *testing.T) {
	skipOnWindows(t)
	useHelper(t, map[string]string{"streamlink": "produce-forever", "ffmpeg": "consume-until-interrupt"})
	mirror := &syncBuffer{}
	sup := New(WithMirror(mirror), WithQuitGrace(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		waitFor(t, mirror, "got: tick")
		cancel()
	}()

	outcome, err := sup.RunPipeline(ctx, Command{Name: "streamlink"}, Command{Name: "ffmpeg"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !outcome.Success {
		t.Fatalf("expected consumer to exit cleanly on interrupt: %+v", outcome)
	}
	if !strings.Contains(mirror.String(), "interrupted") {
		t.Fatalf("expected interrupt acknowledgement, got %q", mirror.String())
	}
}

func waitFor(t *testing.T, buf *syncBuffer, needle string) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), needle) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timed out waiting for %q", needle)
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("PROCESS_HELPER_MODE") {
	case "lines":
		fmt.Fprintln(os.Stdout, "stdout line")
		fmt.Fprintln(os.Stderr, "stderr line")
		fmt.Fprint(os.Stderr, "size=    2048kB time=00:01:05.00 bitrate=258.1kbits/s\r")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "fatal: no stream")
		os.Exit(3)
	case "quit":
		fmt.Fprintln(os.Stdout, "ready")
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err != nil {
				os.Exit(4)
			}
			if buf[0] == 'q' {
				fmt.Fprintln(os.Stdout, "got q")
				os.Exit(0)
			}
		}
	case "stubborn":
		signal.Ignore(os.Interrupt)
		fmt.Fprintln(os.Stdout, "ready")
		time.Sleep(time.Minute)
		os.Exit(0)
	case "produce":
		fmt.Fprintln(os.Stdout, "chunk-1")
		fmt.Fprintln(os.Stdout, "chunk-2")
		fmt.Fprintln(os.Stderr, "source log")
		os.Exit(0)
	case "produce-forever":
		for {
			if _, err := fmt.Fprintln(os.Stdout, "tick"); err != nil {
				os.Exit(0)
			}
			time.Sleep(20 * time.Millisecond)
		}
	case "consume":
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			fmt.Fprintln(os.Stdout, "got: "+scanner.Text())
		}
		os.Exit(0)
	case "consume-until-interrupt":
		interrupts := make(chan os.Signal, 1)
		signal.Notify(interrupts, os.Interrupt)
		lines := make(chan string)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()
		for {
			select {
			case <-interrupts:
				fmt.Fprintln(os.Stdout, "interrupted")
				os.Exit(0)
			case line := <-lines:
				fmt.Fprintln(os.Stdout, "got: "+line)
			}
		}
	default:
		os.Exit(2)
	}
}
