package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderStatusLine(t *testing.T) {
	tests := []struct {
		name    string
		kind    statusKind
		message string
		want    string
	}{
		{"ok with detail", statusOK, "running (pid 7)", "[OK] running (pid 7)"},
		{"error without detail", statusError, "", "[ERROR]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := renderStatusLine("Daemon", tt.kind, tt.message, false)
			if !strings.HasPrefix(line, "  Daemon:") || !strings.HasSuffix(line, tt.want) {
				t.Fatalf("line = %q", line)
			}
		})
	}

	colored := renderStatusLine("Daemon", statusWarn, "x", true)
	if !strings.HasPrefix(colored, ansiYellow) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("colored line = %q", colored)
	}
}

func TestShouldColorizeBuffer(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	if !strings.Contains(out, "only") || !strings.Contains(out, "A") {
		t.Fatalf("table = %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty table without headers")
	}
}
