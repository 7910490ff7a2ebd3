package store

import "time"

// RunRecord is one invocation of the runner.
type RunRecord struct {
	ID         string
	Source     string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// ScenarioRecord is the terminal state of one scenario.
type ScenarioRecord struct {
	Scenario    int
	Status      string // done, failed
	ActionCount int
	Rationale   string
	Error       string
}

// ActionRecord is one dispatched (or skipped) action.
type ActionRecord struct {
	Scenario int
	Step     int
	Kind     string
	Target   string
	Status   string // ok, failed, skipped, denied
	Detail   string
}
