package scenario

import "fmt"

// ActionCount returns how many actions a valid plan for steps must hold.
//
// Counting starts at the first "when" and stops for good at the first
// "then"; "and" steps inside that window count, "given" never does.
func ActionCount(steps []Step) (int, error) {
	n := len(CountedSteps(steps))
	if n == 0 {
		return 0, fmt.Errorf("%w (%d steps scanned)", ErrNoWhenStep, len(steps))
	}
	return n, nil
}

// CountedSteps returns the steps that each map to exactly one action.
func CountedSteps(steps []Step) []Step {
	var (
		counted      []Step
		active       bool
		windowClosed bool
	)
	for _, st := range steps {
		if windowClosed {
			break
		}
		switch st.Type {
		case StepWhen:
			active = true
			counted = append(counted, st)
		case StepThen:
			if active {
				windowClosed = true
			}
			active = false
		case StepAnd:
			if active {
				counted = append(counted, st)
			}
		}
	}
	return counted
}

// OutcomeSteps returns the conditions judged after execution: every "then"
// plus the "and" steps that follow one.
func OutcomeSteps(steps []Step) []Step {
	var (
		out       []Step
		inOutcome bool
	)
	for _, st := range steps {
		switch st.Type {
		case StepThen:
			inOutcome = true
			out = append(out, st)
		case StepAnd:
			if inOutcome {
				out = append(out, st)
			}
		default:
			inOutcome = false
		}
	}
	return out
}

// HasThen reports whether any step is a "then".
func HasThen(steps []Step) bool {
	for _, st := range steps {
		if st.Type == StepThen {
			return true
		}
	}
	return false
}
