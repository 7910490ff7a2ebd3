package orchestrator

import (
	"fmt"
	"strings"
)

type ScenarioStatus string

const (
	StatusDone   ScenarioStatus = "done"
	StatusFailed ScenarioStatus = "failed"
)

// ValidationResult is the judge's verdict on a scenario's outcome.
type ValidationResult struct {
	Success   bool   `json:"success"`
	Rationale string `json:"rationale"`
}

// ScenarioResult is the terminal state of one scenario.
type ScenarioResult struct {
	Index       int
	Status      ScenarioStatus
	ActionCount int
	Executed    int
	Skipped     int
	Validation  *ValidationResult
	Err         error
}

// Report summarises a run. Scenarios after the first fatal error are not
// attempted and do not appear.
type Report struct {
	RunID     string
	Source    string
	Scenarios []ScenarioResult
	Err       error
}

func (r *Report) Passed() bool {
	if r.Err != nil || len(r.Scenarios) == 0 {
		return false
	}
	for _, s := range r.Scenarios {
		if s.Status != StatusDone {
			return false
		}
	}
	return true
}

func (r *Report) Summary() string {
	var b strings.Builder
	verdict := "PASSED"
	if !r.Passed() {
		verdict = "FAILED"
	}
	fmt.Fprintf(&b, "Run %s (%s): %s\n", r.RunID, r.Source, verdict)
	for _, s := range r.Scenarios {
		fmt.Fprintf(&b, "  scenario %d: %s, %d/%d actions executed", s.Index+1, s.Status, s.Executed, s.ActionCount)
		if s.Skipped > 0 {
			fmt.Fprintf(&b, ", %d skipped", s.Skipped)
		}
		b.WriteString("\n")
		if s.Validation != nil && s.Validation.Rationale != "" {
			fmt.Fprintf(&b, "    %s\n", strings.ReplaceAll(s.Validation.Rationale, "\n", "\n    "))
		}
		if s.Err != nil {
			fmt.Fprintf(&b, "    error: %v\n", s.Err)
		}
	}
	if r.Err != nil && (len(r.Scenarios) == 0 || r.Scenarios[len(r.Scenarios)-1].Err == nil) {
		fmt.Fprintf(&b, "  error: %v\n", r.Err)
	}
	return b.String()
}
