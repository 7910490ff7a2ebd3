package elements

import (
	"strings"
	"unicode"

	"github.com/rahul/stepwright/internal/action"
)

// MatchKind classifies a resolution.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchFuzzy
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	}
	return "none"
}

// Resolution is the outcome of grounding one action target.
type Resolution struct {
	Kind       MatchKind
	Element    TestElement
	Candidates []TestElement
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "to": true,
	"of": true, "in": true, "on": true, "into": true, "onto": true, "at": true,
	"for": true, "with": true, "from": true, "by": true, "is": true, "are": true,
	"be": true, "it": true, "its": true, "this": true, "that": true, "then": true,
	"when": true, "given": true, "user": true, "users": true, "they": true,
	"he": true, "she": true, "i": true, "clicks": true, "click": true,
	"types": true, "type": true, "enters": true, "enter": true, "selects": true,
	"select": true, "presses": true, "press": true, "taps": true, "tap": true,
	"button": true, "field": true, "page": true, "link": true, "value": true,
}

// Resolve grounds an action target against the snapshot.
//
// Exact matches are tried first, in order: the element id (case-insensitive),
// the id with the standard prefix prepended, then the element's display text.
// Without an exact match, every element whose id contains a significant word
// of stepText is returned as a fuzzy candidate.
func Resolve(a action.Action, stepText string, snap *Snapshot) Resolution {
	target, ok := action.Target(a)
	if !ok {
		return Resolution{Kind: MatchNone}
	}
	return ResolveTarget(target, stepText, snap)
}

func ResolveTarget(target, stepText string, snap *Snapshot) Resolution {
	els := snap.Elements()
	want := strings.TrimSpace(target)

	for _, el := range els {
		if strings.EqualFold(el.ID, want) {
			return Resolution{Kind: MatchExact, Element: el}
		}
	}
	for _, el := range els {
		if strings.EqualFold(el.ID, TestIDPrefix+want) {
			return Resolution{Kind: MatchExact, Element: el}
		}
	}
	for _, el := range els {
		if el.Text != "" && strings.EqualFold(el.Text, want) {
			return Resolution{Kind: MatchExact, Element: el}
		}
	}

	tokens := Tokenize(stepText)
	var candidates []TestElement
	for _, el := range els {
		id := strings.ToLower(el.ID)
		for _, tok := range tokens {
			if strings.Contains(id, tok) {
				candidates = append(candidates, el)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return Resolution{Kind: MatchNone}
	}
	return Resolution{Kind: MatchFuzzy, Candidates: candidates}
}

// Tokenize lowercases text and returns its words minus stop words.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if len(w) < 2 || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Grounded reports whether target names a known element id exactly, either
// directly or once the standard prefix is prepended.
func Grounded(target string, snap *Snapshot) bool {
	if _, ok := snap.Get(target); ok {
		return true
	}
	_, ok := snap.Get(TestIDPrefix + target)
	return ok
}

// FilterGrounded drops element-targeting actions whose target is not
// grounded. Actions without an element target always survive.
func FilterGrounded(plan action.Plan, snap *Snapshot) action.Plan {
	out := make(action.Plan, 0, len(plan))
	for _, a := range plan {
		if target, ok := action.Target(a); ok && !Grounded(target, snap) {
			continue
		}
		out = append(out, a)
	}
	return out
}
