package history

import "time"

// Outcome classifies how a capture loop terminated.
type Outcome string

const (
	// OutcomeCompleted marks a download-mode run that captured successfully.
	OutcomeCompleted Outcome = "completed"
	// OutcomeEnded marks a continuous run that stopped after the stream went away.
	OutcomeEnded Outcome = "ended"
	// OutcomeCancelled marks a run interrupted by shutdown.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeFailed marks a run terminated by an unexpected error.
	OutcomeFailed Outcome = "failed"
	// OutcomeInvalid marks a run that could not start because of bad configuration.
	OutcomeInvalid Outcome = "invalid"
)

// Run is a persisted capture loop result.
type Run struct {
	ID            int64
	RunID         string
	Task          string
	SourceURL     string
	Title         string
	Backend       string
	StartedAt     time.Time
	FinishedAt    time.Time
	CoverPath     string
	DownloadMode  bool
	Attempts      int
	Segments      int
	BytesCaptured int64
	Outcome       Outcome
	ErrorMessage  string
}

// Duration returns the wall-clock length of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
