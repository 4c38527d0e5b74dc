package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"livecap/internal/config"
)

const userAgent = "livecap/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventCaptureStarted Event = "capture_started"
	EventStreamEnded    Event = "stream_ended"
	EventHookFailed     Event = "hook_failed"
	EventError          Event = "error"
	EventTestNotify     Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventCaptureStarted: cfg.Notifications.CaptureStarted,
			EventStreamEnded:    cfg.Notifications.StreamEnded,
			EventHookFailed:     cfg.Notifications.Errors,
			EventError:          cfg.Notifications.Errors,
			EventTestNotify:     true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	task := str(payload, "task")
	switch event {
	case EventCaptureStarted:
		body := fmt.Sprintf("🔴 %s is live", task)
		if title := str(payload, "title"); title != "" && title != task {
			body += ": " + title
		}
		return message{
			title: "livecap - Capture Started",
			body:  body,
			tags:  []string{"livecap", "capture", "started"},
		}, true
	case EventStreamEnded:
		body := fmt.Sprintf("⏹ %s ended after %s", task, str(payload, "duration"))
		if segments := str(payload, "segments"); segments != "" {
			body += fmt.Sprintf(" (%s segments)", segments)
		}
		return message{
			title: "livecap - Stream Ended",
			body:  body,
			tags:  []string{"livecap", "capture", "ended"},
		}, true
	case EventHookFailed:
		return message{
			title:    "livecap - Hook Failed",
			body:     fmt.Sprintf("Hook for %s failed: %s", task, str(payload, "error")),
			tags:     []string{"livecap", "hook", "alert"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := str(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if errText := str(payload, "error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "livecap - Error",
			body:     b.String(),
			tags:     []string{"livecap", "error", "alert"},
			priority: "high",
		}, true
	case EventTestNotify:
		return message{
			title:    "livecap - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"livecap", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func str(payload Payload, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case error:
		return strings.TrimSpace(val.Error())
	case time.Duration:
		return val.Round(time.Second).String()
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
