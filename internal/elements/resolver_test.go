package elements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/stepwright/internal/action"
)

func fixture() *Snapshot {
	s := NewSnapshot()
	s.Merge(
		TestElement{ID: "save-btn", Tag: "button", Text: "Save"},
		TestElement{ID: "e2e-cancel", Tag: "button", Text: "Cancel"},
		TestElement{ID: "e2e-search-input", Tag: "input"},
		TestElement{ID: "e2e-search-submit", Tag: "button", Text: "Go"},
	)
	return s
}

func TestResolve_ExactMatches(t *testing.T) {
	snap := fixture()
	tests := []struct {
		name   string
		target string
		wantID string
	}{
		{"id", "save-btn", "save-btn"},
		{"id case-insensitive", "SAVE-BTN", "save-btn"},
		{"prefixed id", "cancel", "e2e-cancel"},
		{"display text", "go", "e2e-search-submit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(action.FindAndClick{Target: tt.target}, "the user clicks search", snap)
			require.Equal(t, MatchExact, res.Kind)
			assert.Equal(t, tt.wantID, res.Element.ID)
			assert.Empty(t, res.Candidates)
		})
	}
}

func TestResolve_FuzzyCandidates(t *testing.T) {
	res := Resolve(action.FindAndType{Target: "query box", Value: "x"}, `the user types "shoes" into the search box`, fixture())

	require.Equal(t, MatchFuzzy, res.Kind)
	var ids []string
	for _, el := range res.Candidates {
		ids = append(ids, el.ID)
	}
	assert.Equal(t, []string{"e2e-search-input", "e2e-search-submit"}, ids)
}

func TestResolve_NoCandidates(t *testing.T) {
	res := Resolve(action.FindAndClick{Target: "publish"}, "the user clicks publish", fixture())
	assert.Equal(t, MatchNone, res.Kind)
	assert.Empty(t, res.Candidates)
}

func TestResolve_NonTargetAction(t *testing.T) {
	res := Resolve(action.Reload{}, "the user reloads", fixture())
	assert.Equal(t, MatchNone, res.Kind)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"shoes", "search", "box"}, Tokenize(`The user types "shoes" into the search box`))
}

func TestFilterGrounded(t *testing.T) {
	snap := fixture()
	plan := action.Plan{
		action.FindAndClick{Target: "save-btn"},
		action.FindAndClick{Target: "Save"},
		action.FindAndClick{Target: "cancel"},
		action.WaitForText{Text: "Saved"},
		action.FindAndType{Target: "nowhere", Value: "x"},
	}

	got := FilterGrounded(plan, snap)
	assert.Equal(t, action.Plan{
		action.FindAndClick{Target: "save-btn"},
		action.FindAndClick{Target: "cancel"},
		action.WaitForText{Text: "Saved"},
	}, got)

	for _, a := range got {
		if target, ok := action.Target(a); ok {
			assert.True(t, Grounded(target, snap))
		}
	}
}
