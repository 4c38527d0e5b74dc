package logging

import (
	"testing"
	"time"
)

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name   string
		bucket time.Duration
		want   time.Duration
	}{
		{"default bucket for zero", 0, time.Minute},
		{"default bucket for negative", -time.Second, time.Minute},
		{"custom bucket", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucket)
			if s.bucket != tt.want {
				t.Errorf("bucket = %v, want %v", s.bucket, tt.want)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(time.Second, "phase") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(time.Minute)

	steps := []struct {
		position time.Duration
		want     bool
	}{
		{0, true},
		{30 * time.Second, false},
		{59 * time.Second, false},
		{61 * time.Second, true},
		{90 * time.Second, false},
		{5 * time.Minute, true},
		{4 * time.Minute, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.position, ""); got != step.want {
			t.Fatalf("ShouldLog(%v) = %v, want %v", step.position, got, step.want)
		}
	}
}

func TestProgressSampler_PhaseChangeResetsBuckets(t *testing.T) {
	s := NewProgressSampler(time.Minute)
	if !s.ShouldLog(2*time.Minute, "part-1") {
		t.Fatal("first event should log")
	}
	if s.ShouldLog(2*time.Minute, "part-1") {
		t.Fatal("same phase and bucket should not log")
	}
	if !s.ShouldLog(0, "  part-2  ") {
		t.Fatal("phase change should log")
	}
	if s.lastPhase != "part-2" {
		t.Fatalf("lastPhase = %q, want part-2", s.lastPhase)
	}
}

func TestProgressSampler_UnknownPosition(t *testing.T) {
	s := NewProgressSampler(time.Minute)
	if s.ShouldLog(-1, "") {
		t.Fatal("unknown position without phase should not log")
	}
	s.ShouldLog(3*time.Minute, "")
	s.Reset()
	if !s.ShouldLog(0, "") {
		t.Fatal("reset should allow the first bucket to log again")
	}
}
