package scenario

import (
	"regexp"
	"strings"
)

var (
	keywordExpr = regexp.MustCompile(`(?i)\b(given|when|then|and)\b`)
	asideExpr   = regexp.MustCompile(`\([^()]*\)`)
	spacesExpr  = regexp.MustCompile(`\s+`)
)

type keywordMatch struct {
	kind       StepType
	start, end int
}

// Parse splits a given/when/then narrative into scenarios.
//
// Only the text between the first "given" and the line holding the last
// "then"/"and" is considered. Every further "given" opens a new scenario.
// Scenarios whose steps are all empty are dropped.
func Parse(narrative string) ([]Scenario, error) {
	text := stripAsides(narrative)
	matches := findKeywords(text)

	first := -1
	for i, m := range matches {
		if m.kind == StepGiven {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, &ParseError{Reason: "no given step found"}
	}

	last := -1
	for i := len(matches) - 1; i > first; i-- {
		if matches[i].kind == StepThen || matches[i].kind == StepAnd {
			last = i
			break
		}
	}
	if last < 0 {
		return nil, &ParseError{Reason: "no then or and step found"}
	}

	end := len(text)
	if nl := strings.IndexByte(text[matches[last].end:], '\n'); nl >= 0 {
		end = matches[last].end + nl
	}
	span := text[matches[first].start:end]

	var scenarios []Scenario
	var current []Step
	flush := func() {
		if len(current) > 0 {
			scenarios = append(scenarios, Scenario{Index: len(scenarios), Steps: current})
		}
		current = nil
	}

	spanMatches := findKeywords(span)
	for i, m := range spanMatches {
		if m.kind == StepGiven && i > 0 {
			flush()
		}
		stop := len(span)
		if i+1 < len(spanMatches) {
			stop = spanMatches[i+1].start
		}
		body := cleanStepText(span[m.end:stop])
		if body == "" {
			continue
		}
		current = append(current, Step{Type: m.kind, Text: body})
	}
	flush()

	return scenarios, nil
}

func findKeywords(text string) []keywordMatch {
	idx := keywordExpr.FindAllStringIndex(text, -1)
	out := make([]keywordMatch, 0, len(idx))
	for _, loc := range idx {
		out = append(out, keywordMatch{
			kind:  StepType(strings.ToLower(text[loc[0]:loc[1]])),
			start: loc[0],
			end:   loc[1],
		})
	}
	return out
}

func stripAsides(text string) string {
	for {
		next := asideExpr.ReplaceAllString(text, " ")
		if next == text {
			return text
		}
		text = next
	}
}

func cleanStepText(raw string) string {
	s := strings.TrimSpace(spacesExpr.ReplaceAllString(raw, " "))
	s = strings.TrimRight(s, ",;")
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, `"`, `\"`)
}
