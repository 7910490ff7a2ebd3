package planning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rahul/stepwright/internal/action"
)

// ExtractPlan parses a planner reply into a plan. Replies are allowed to
// wrap the array in prose, code fences or comments and to carry trailing
// commas; the first array that decodes as a plan wins.
func ExtractPlan(reply string) (action.Plan, error) {
	trimmed := strings.TrimSpace(reply)

	if strings.HasPrefix(trimmed, "[") {
		var plan action.Plan
		if err := json.Unmarshal([]byte(trimmed), &plan); err == nil {
			return plan, nil
		}
	}

	cleaned := stripTrailingCommas(stripComments(stripFences(trimmed)))
	for start := strings.IndexByte(cleaned, '['); start >= 0; {
		if end := matchingBracket(cleaned, start); end > start {
			var candidate action.Plan
			if err := json.Unmarshal([]byte(cleaned[start:end+1]), &candidate); err == nil {
				return candidate, nil
			}
		}
		next := strings.IndexByte(cleaned[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return nil, fmt.Errorf("%w: %s", ErrFormat, snippet(trimmed, 200))
}

func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// stripComments removes // and /* */ comments that are outside strings.
func stripComments(s string) string {
	var b strings.Builder
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					return b.String()
				}
				i += end + 3
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// stripTrailingCommas drops commas directly followed by ] or }.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// matchingBracket returns the index of the ']' closing the '[' at start,
// or -1.
func matchingBracket(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
