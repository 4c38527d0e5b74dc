package services_test

import (
	"context"
	"testing"

	"livecap/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTask(ctx, "somestreamer")
	ctx = services.WithAttempt(ctx, 3)
	ctx = services.WithBackend(ctx, "ffmpeg")
	ctx = services.WithRequestID(ctx, "req-123")

	if name, ok := services.TaskFromContext(ctx); !ok || name != "somestreamer" {
		t.Fatalf("unexpected task: %v %v", name, ok)
	}
	if attempt, ok := services.AttemptFromContext(ctx); !ok || attempt != 3 {
		t.Fatalf("unexpected attempt: %v %v", attempt, ok)
	}
	if backend, ok := services.BackendFromContext(ctx); !ok || backend != "ffmpeg" {
		t.Fatalf("unexpected backend: %v %v", backend, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTask(ctx, "")
	ctx = services.WithBackend(ctx, "")
	if _, ok := services.TaskFromContext(ctx); ok {
		t.Fatal("expected no task value")
	}
	if _, ok := services.BackendFromContext(ctx); ok {
		t.Fatal("expected no backend value")
	}
	if _, ok := services.AttemptFromContext(ctx); ok {
		t.Fatal("expected no attempt value")
	}
}
