package logging

import (
	"strings"
	"time"
)

// ProgressSampler suppresses repetitive capture progress logs. It emits when
// the captured media position crosses a bucket boundary or when the phase
// (e.g. the output file) changes.
type ProgressSampler struct {
	bucket     time.Duration
	lastPhase  string
	lastBucket int64
}

// NewProgressSampler constructs a sampler with the given bucket width
// (default one minute of captured media).
func NewProgressSampler(bucket time.Duration) *ProgressSampler {
	if bucket <= 0 {
		bucket = time.Minute
	}
	return &ProgressSampler{bucket: bucket, lastBucket: -1}
}

// ShouldLog reports whether a progress event at position should be promoted.
// A negative position means "unknown" and only phase changes are considered.
func (s *ProgressSampler) ShouldLog(position time.Duration, phase string) bool {
	if s == nil {
		return true
	}
	phase = strings.TrimSpace(phase)
	emit := false
	if phase != "" && phase != s.lastPhase {
		s.lastPhase = phase
		s.lastBucket = -1
		emit = true
	}
	if position >= 0 {
		if b := int64(position / s.bucket); b > s.lastBucket {
			s.lastBucket = b
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state, e.g. when a new attempt starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastPhase = ""
	s.lastBucket = -1
}
