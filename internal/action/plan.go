package action

import (
	"encoding/json"
	"fmt"
)

// Plan is an ordered list of actions; index i answers the i-th counted step.
type Plan []Action

func (p Plan) MarshalJSON() ([]byte, error) {
	wire := make([]wireAction, 0, len(p))
	for i, a := range p {
		w, err := toWire(a)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

func (p *Plan) UnmarshalJSON(data []byte) error {
	var wire []wireAction
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := make(Plan, 0, len(wire))
	for i, w := range wire {
		a, err := fromWire(w)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		out = append(out, a)
	}
	*p = out
	return nil
}

// Clone returns a copy that can be spliced without touching p.
func (p Plan) Clone() Plan {
	out := make(Plan, len(p))
	copy(out, p)
	return out
}

// SamePrefix reports whether p and other agree on the first n actions.
func (p Plan) SamePrefix(other Plan, n int) bool {
	if len(p) < n || len(other) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// JSON renders the plan for prompts; encoding errors fall back to "[]".
func (p Plan) JSON() string {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
