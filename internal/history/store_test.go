package history_test

import (
	"context"
	"testing"
	"time"

	"livecap/internal/history"
	"livecap/internal/testsupport"
)

func TestRecordAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	runs := []history.Run{
		{RunID: "run-1", Task: "alpha", SourceURL: "https://a", StartedAt: base, FinishedAt: base.Add(time.Hour), Attempts: 4, Segments: 2, Outcome: history.OutcomeEnded},
		{RunID: "run-2", Task: "beta", SourceURL: "https://b", Title: "chat", StartedAt: base.Add(time.Minute), FinishedAt: base.Add(2 * time.Minute), DownloadMode: true, Outcome: history.OutcomeCompleted, CoverPath: "/tmp/c.jpg"},
		{RunID: "run-3", Task: "alpha", SourceURL: "https://a", StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(3 * time.Hour), Outcome: history.OutcomeCancelled, ErrorMessage: "context canceled"},
	}
	for _, run := range runs {
		if _, err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].RunID != "run-3" || all[2].RunID != "run-1" {
		t.Fatalf("unexpected order: %+v", all)
	}

	limited, err := store.List(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("unexpected limited list: %v %v", limited, err)
	}

	alpha, err := store.ForTask(ctx, "alpha", 10)
	if err != nil {
		t.Fatalf("ForTask failed: %v", err)
	}
	if len(alpha) != 2 {
		t.Fatalf("unexpected alpha runs: got %d want 2", len(alpha))
	}

	got, err := store.Get(ctx, "run-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || !got.DownloadMode || got.Title != "chat" || got.CoverPath != "/tmp/c.jpg" || got.Outcome != history.OutcomeCompleted {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.Duration() != time.Minute {
		t.Fatalf("unexpected duration: %v", got.Duration())
	}
}

func TestGetMissingRun(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	got, err := store.Get(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected nil run, got %+v err %v", got, err)
	}
}

func TestRecordRequiresIdentity(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if _, err := store.Record(context.Background(), history.Run{Task: "alpha"}); err == nil {
		t.Fatal("expected error without run id")
	}
	if _, err := store.Record(context.Background(), history.Run{RunID: "x"}); err == nil {
		t.Fatal("expected error without task")
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.Record(context.Background(), history.Run{RunID: "r", Task: "alpha", StartedAt: time.Now(), Outcome: history.OutcomeEnded}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	store.Close()

	reopened := testsupport.MustOpenHistory(t, cfg)
	runs, err := reopened.List(context.Background(), 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("unexpected runs after reopen: %v %v", runs, err)
	}
}
