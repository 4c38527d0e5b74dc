package recorder

import (
	"fmt"
	"time"
)

const (
	// MaxImmediateRetries is how many failed attempts are retried on the short
	// fixed delay before the end-of-stream branch is considered.
	MaxImmediateRetries = 3
	// ImmediateRetryDelay is the fixed wait between immediate retries.
	ImmediateRetryDelay = 10 * time.Second
	// EndOfStreamPoll is the longest single wait inside the grace window.
	EndOfStreamPoll = 60 * time.Second
)

// State is a capture loop state.
type State int

const (
	StateProbing State = iota
	StateCapturing
	StateSucceeded
	StateFailed
	StateImmediateRetryWait
	StateEndOfStreamWait
	StateTerminated
)

var stateNames = [...]string{
	StateProbing:            "probing",
	StateCapturing:          "capturing",
	StateSucceeded:          "succeeded",
	StateFailed:             "failed",
	StateImmediateRetryWait: "immediate_retry_wait",
	StateEndOfStreamWait:    "end_of_stream_wait",
	StateTerminated:         "terminated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the legal successor states.
var transitions = map[State][]State{
	StateProbing:            {StateCapturing, StateFailed},
	StateCapturing:          {StateSucceeded, StateFailed},
	StateSucceeded:          {StateProbing, StateTerminated},
	StateFailed:             {StateImmediateRetryWait, StateEndOfStreamWait, StateTerminated},
	StateImmediateRetryWait: {StateProbing},
	StateEndOfStreamWait:    {StateProbing},
}

// RetryState holds the loop's retry counters.
type RetryState struct {
	RetryCount      int
	DelayRetryCount int
	DelayAllowance  int
}

// Decision is the machine's verdict after an attempt.
type Decision struct {
	Rule string
	Next State
	// Wait is how long to sleep before probing again.
	Wait time.Duration
	// Success reports the terminal outcome; meaningful when Next is
	// StateTerminated.
	Success bool
	Retry   RetryState
	// FirstWindowCycle is set on the first end-of-stream poll of a run.
	FirstWindowCycle bool
}

// Terminal reports whether the loop should stop.
func (d Decision) Terminal() bool { return d.Next == StateTerminated }

type rule struct {
	name  string
	from  State
	when  func(*Machine) bool
	apply func(*Machine) Decision
}

// rules are evaluated in order; the first whose source state and guard match
// decides the transition.
var rules = []rule{
	{"continuous_success", StateSucceeded, (*Machine).continuous, (*Machine).resetAndProbe},
	{"download_complete", StateSucceeded, (*Machine).oneShot, terminate(true)},
	{"immediate_retry", StateFailed, (*Machine).retriesLeft, (*Machine).immediateRetry},
	{"download_failed", StateFailed, (*Machine).oneShot, terminate(false)},
	{"no_grace_window", StateFailed, (*Machine).noDelay, terminate(false)},
	{"end_of_stream", StateFailed, always, (*Machine).endOfStream},
}

// Machine is the retry and backoff state machine for one capture loop.
type Machine struct {
	state        State
	retry        RetryState
	delay        time.Duration
	downloadMode bool
}

// NewMachine returns a machine in StateProbing. delaySeconds is the
// end-of-stream grace window; zero disables it.
func NewMachine(delaySeconds int, downloadMode bool) *Machine {
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	return &Machine{
		state:        StateProbing,
		delay:        time.Duration(delaySeconds) * time.Second,
		downloadMode: downloadMode,
		retry:        RetryState{DelayAllowance: (delaySeconds + 59) / 60},
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Retry returns a copy of the counters.
func (m *Machine) Retry() RetryState { return m.retry }

// ProbeFinished records the probe result.
func (m *Machine) ProbeFinished(live bool) error {
	if live {
		return m.move(StateCapturing)
	}
	return m.move(StateFailed)
}

// CaptureFinished records the capture result.
func (m *Machine) CaptureFinished(success bool) error {
	if success {
		return m.move(StateSucceeded)
	}
	return m.move(StateFailed)
}

// AttemptFinished settles an attempt that ended before both of its steps
// were recorded, such as a failed probe or a recovered panic.
func (m *Machine) AttemptFinished(success bool) error {
	switch m.state {
	case StateProbing:
		return m.move(StateFailed)
	case StateCapturing:
		return m.CaptureFinished(success)
	}
	return nil
}

// Decide evaluates the rules for the current attempt outcome and moves to
// the next state.
func (m *Machine) Decide() (Decision, error) {
	for _, r := range rules {
		if r.from != m.state || !r.when(m) {
			continue
		}
		d := r.apply(m)
		d.Rule = r.name
		if err := m.move(d.Next); err != nil {
			return Decision{}, err
		}
		d.Retry = m.retry
		return d, nil
	}
	return Decision{}, fmt.Errorf("no rule for state %s", m.state)
}

// Resume leaves a wait state and starts the next probe.
func (m *Machine) Resume() error {
	return m.move(StateProbing)
}

func (m *Machine) move(to State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == to {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", m.state, to)
}

func (m *Machine) continuous() bool  { return !m.downloadMode }
func (m *Machine) oneShot() bool     { return m.downloadMode }
func (m *Machine) retriesLeft() bool { return m.retry.RetryCount < MaxImmediateRetries }
func (m *Machine) noDelay() bool     { return m.delay <= 0 }
func always(*Machine) bool           { return true }

func (m *Machine) resetAndProbe() Decision {
	m.retry.RetryCount = 0
	m.retry.DelayRetryCount = 0
	return Decision{Next: StateProbing}
}

func (m *Machine) immediateRetry() Decision {
	m.retry.RetryCount++
	return Decision{Next: StateImmediateRetryWait, Wait: ImmediateRetryDelay}
}

func (m *Machine) endOfStream() Decision {
	m.retry.DelayRetryCount++
	if m.retry.DelayRetryCount > m.retry.DelayAllowance {
		return Decision{Next: StateTerminated}
	}
	wait := min(m.delay, EndOfStreamPoll)
	return Decision{
		Next:             StateEndOfStreamWait,
		Wait:             wait,
		FirstWindowCycle: m.retry.DelayRetryCount == 1,
	}
}

func terminate(success bool) func(*Machine) Decision {
	return func(*Machine) Decision {
		return Decision{Next: StateTerminated, Success: success}
	}
}
