package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	info := slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(newFanoutHandler(info, debug))
	logger.Debug("ffmpeg line")
	logger.Info("capture started")

	if strings.Contains(infoBuf.String(), "ffmpeg line") {
		t.Fatal("info handler should not receive debug records")
	}
	if !strings.Contains(debugBuf.String(), "ffmpeg line") || !strings.Contains(debugBuf.String(), "capture started") {
		t.Fatalf("debug handler missing records: %q", debugBuf.String())
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout to be enabled for debug")
	}
}

func TestTeeLoggerCarriesAttrs(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&baseBuf, nil))
	tee := slog.NewTextHandler(&teeBuf, nil)

	logger := TeeLogger(base, tee).With(String(FieldTask, "alpha")).WithGroup("probe")
	logger.Info("live", String("url", "https://example.com"))

	for _, out := range []string{baseBuf.String(), teeBuf.String()} {
		if !strings.Contains(out, "task=alpha") || !strings.Contains(out, "probe.url=https://example.com") {
			t.Fatalf("unexpected output: %q", out)
		}
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var buf bytes.Buffer
	logger := TeeLogger(nil, slog.NewTextHandler(&buf, nil))
	logger.Info("only tee")
	if !strings.Contains(buf.String(), "only tee") {
		t.Fatalf("expected tee output, got %q", buf.String())
	}
}
