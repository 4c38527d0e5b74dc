package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livecap/internal/config"
	"livecap/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventCaptureStarted, notifications.Payload{"task": "alpha"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "capture started",
			event:         notifications.EventCaptureStarted,
			payload:       notifications.Payload{"task": "alpha", "title": "Late night"},
			expectTitle:   "livecap - Capture Started",
			expectMessage: "🔴 alpha is live: Late night",
			expectTags:    "livecap,capture,started",
		},
		{
			name:          "stream ended",
			event:         notifications.EventStreamEnded,
			payload:       notifications.Payload{"task": "alpha", "duration": 93*time.Minute + 400*time.Millisecond, "segments": 2},
			expectTitle:   "livecap - Stream Ended",
			expectMessage: "⏹ alpha ended after 1h33m0s (2 segments)",
			expectTags:    "livecap,capture,ended",
		},
		{
			name:           "hook failed",
			event:          notifications.EventHookFailed,
			payload:        notifications.Payload{"task": "alpha", "error": errors.New("exit status 2")},
			expectTitle:    "livecap - Hook Failed",
			expectMessage:  "Hook for alpha failed: exit status 2",
			expectTags:     "livecap,hook,alert",
			expectPriority: "high",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "alpha", "error": "ffmpeg not found"},
			expectTitle:    "livecap - Error",
			expectMessage:  "❌ Error with alpha: ffmpeg not found",
			expectTags:     "livecap,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresMutedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for muted event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.CaptureStarted = false
	cfg.Notifications.StreamEnded = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	muted := []notifications.Event{
		notifications.EventCaptureStarted,
		notifications.EventStreamEnded,
		notifications.EventHookFailed,
		notifications.EventError,
		notifications.Event("unknown"),
	}
	for _, event := range muted {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"task": "ignored"}); err != nil {
			t.Fatalf("expected no error for muted event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTestNotify, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
