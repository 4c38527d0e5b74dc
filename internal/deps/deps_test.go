package deps

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"livecap/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script stub")
	}
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\necho 'present version 6.1'\necho second line\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present, VersionArg: "-version"},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Version != "present version 6.1" {
		t.Fatalf("unexpected version %q", results[0].Version)
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("unexpected missing set %#v", missing)
	}
}

func TestRequirementsFollowBackends(t *testing.T) {
	tests := []struct {
		name               string
		backend            string
		ffmpegOptional     bool
		streamlinkOptional bool
	}{
		{"streamlink", config.BackendStreamlink, false, false},
		{"ffmpeg", config.BackendFFmpeg, false, true},
		{"native", config.BackendNative, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Download.Downloader = tt.backend
			reqs := Requirements(&cfg)
			if reqs[0].Optional != tt.ffmpegOptional || reqs[1].Optional != tt.streamlinkOptional {
				t.Fatalf("unexpected optional flags: %+v", reqs)
			}
		})
	}
}

func TestRequirementsIncludeStreamerOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Download.Downloader = config.BackendNative
	cfg.Streamers["alpha"] = config.Streamer{URL: "https://a/b", Downloader: config.BackendStreamlink}
	reqs := Requirements(&cfg)
	if reqs[1].Optional {
		t.Fatal("streamlink is required when any streamer uses it")
	}
}
