package models

import (
	"time"
)

// RunState is the explicit lifecycle state of a refresh run. The state is
// written to storage at run start and at every transition; it is never
// inferred from the text of a previous run's summary.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// RunStatus is the persisted status record for the most recent run.
type RunStatus struct {
	Key         string `badgerhold:"key"`
	RunID       string
	State       RunState
	ProgressPct int
	// Reason is populated when State is RunStateFailed.
	Reason string
	// Summary is populated when State is RunStateCompleted.
	Summary   *RunSummary
	UpdatedAt time.Time
}

// RunStatusKey is the single storage key under which run status lives.
const RunStatusKey = "current"

// MethodTally aggregates outcome counts for one valuation method.
type MethodTally struct {
	Success int
	Skipped int
	Errors  int
}

// UsageStats reports external call consumption for one run.
type UsageStats struct {
	APICallsMade int
	CacheHits    int
}

// RemainingWork counts how much of the active universe still needs
// attention after a run.
type RemainingWork struct {
	NeverValued      int
	PreviouslyValued int
	TotalActive      int
}

// RunSummary is the aggregate outcome of a refresh run. It is always
// produced, even when every entity failed.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Selected int
	Outcomes []MethodOutcome

	Tallies   map[Method]*MethodTally
	Usage     UsageStats
	Remaining RemainingWork
}

// Tally returns the aggregate for the given method, creating it on demand.
func (s *RunSummary) Tally(method Method) *MethodTally {
	if s.Tallies == nil {
		s.Tallies = make(map[Method]*MethodTally)
	}
	t, ok := s.Tallies[method]
	if !ok {
		t = &MethodTally{}
		s.Tallies[method] = t
	}
	return t
}

// Record appends a method outcome and updates the matching tally.
func (s *RunSummary) Record(outcome MethodOutcome) {
	s.Outcomes = append(s.Outcomes, outcome)
	t := s.Tally(outcome.Method)
	switch outcome.Kind {
	case OutcomeSuccess:
		t.Success++
	case OutcomeSkipped:
		t.Skipped++
	case OutcomeError:
		t.Errors++
	}
}
