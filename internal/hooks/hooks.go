// Package hooks runs the user's post-capture commands.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"livecap/internal/logging"
	"livecap/internal/notifications"
	"livecap/internal/services"
)

var command = exec.CommandContext

// StartTimeLayout formats Payload.StartTime.
const StartTimeLayout = "2006-01-02 15:04:05"

// Payload is written as JSON to every hook's standard input.
type Payload struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	RoomTitle string `json:"room_title"`
	StartTime string `json:"start_time"`
}

// NewPayload builds the hook payload for a finished run.
func NewPayload(name, url, title string, start time.Time) Payload {
	return Payload{Name: name, URL: url, RoomTitle: title, StartTime: start.Format(StartTimeLayout)}
}

// Result records one hook execution.
type Result struct {
	Command  string
	Output   string
	ExitCode int
	Err      error
}

// Invoker runs hook commands through the platform shell.
type Invoker struct {
	logger   *slog.Logger
	notifier notifications.Service
}

// NewInvoker constructs an Invoker. A nil notifier disables failure alerts.
func NewInvoker(logger *slog.Logger, notifier notifications.Service) *Invoker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Invoker{logger: logging.NewComponentLogger(logger, "hooks"), notifier: notifier}
}

// Run executes each non-empty command once, in order. A failing hook is
// logged and does not stop the ones after it.
func (i *Invoker) Run(ctx context.Context, commands []string, payload Payload) []Result {
	input, err := json.Marshal(payload)
	if err != nil {
		i.logger.Error("encode hook payload", logging.Error(err))
		return nil
	}
	logger := logging.WithContext(ctx, i.logger)
	var results []Result
	for _, line := range commands {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		res := i.runOne(ctx, line, input)
		results = append(results, res)
		if res.Err == nil {
			logger.Info("hook finished", logging.String("command", line), logging.String("output", res.Output))
			continue
		}
		logging.WarnWithContext(logger, "hook failed", "hook_failed",
			logging.String("command", line),
			logging.Int("exit_code", res.ExitCode),
			logging.String("output", res.Output),
			logging.String(logging.FieldImpact, "recording kept; post-processing skipped"),
			logging.Error(res.Err),
		)
		if i.notifier != nil {
			if nerr := i.notifier.Publish(ctx, notifications.EventHookFailed, notifications.Payload{
				"task":  payload.Name,
				"error": res.Err,
			}); nerr != nil {
				logger.Debug("hook failure notification failed", logging.Error(nerr))
			}
		}
	}
	return results
}

func (i *Invoker) runOne(ctx context.Context, line string, input []byte) Result {
	name, args := shell(line)
	cmd := command(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)
	out, err := cmd.CombinedOutput()
	res := Result{Command: line, Output: strings.TrimRight(string(out), "\r\n")}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		res.Err = services.Wrap(services.ErrExternalTool, "hooks", "run", line, err)
	}
	return res
}

func shell(line string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", line}
	}
	return "sh", []string{"-c", line}
}
