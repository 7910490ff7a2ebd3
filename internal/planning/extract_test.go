package planning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/stepwright/internal/action"
)

func TestExtractPlan(t *testing.T) {
	want := action.Plan{action.FindAndClick{Target: "save-btn"}, action.Reload{}}

	tests := []struct {
		name  string
		reply string
	}{
		{"bare array", `[{"type":"findAndClick","text":"save-btn"},{"type":"reload"}]`},
		{"fenced with prose", "Here is the plan:\n```json\n[{\"type\":\"findAndClick\",\"text\":\"save-btn\"},\n{\"type\":\"reload\"}]\n```\nGood luck."},
		{"comments and trailing commas", `[
			// click save
			{"type": "findAndClick", "text": "save-btn",},
			/* then reload */ {"type": "reload"},
		]`},
		{"wrapped in object", `{"actions": [{"type":"findAndClick","text":"save-btn"},{"type":"reload"}]}`},
		{"prose brackets first", `Steps [1-2] follow: [{"type":"findAndClick","text":"save-btn"},{"type":"reload"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractPlan(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestExtractPlan_KeepsSlashesInStrings(t *testing.T) {
	got, err := ExtractPlan("```\n[{\"type\":\"waitForText\",\"text\":\"see http://x/y, ok\",\"timeout\":100},]\n```")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "see http://x/y, ok", got[0].(action.WaitForText).Text)
}

func TestExtractPlan_EmptyArray(t *testing.T) {
	got, err := ExtractPlan("[]")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractPlan_NoArray(t *testing.T) {
	for _, reply := range []string{"", "null", " null\n", "{}", "I cannot help with that.", `[{"type":"teleport"}]`, `[{"type":"reload"}`} {
		_, err := ExtractPlan(reply)
		require.Error(t, err, reply)
		assert.True(t, errors.Is(err, ErrFormat))
	}
}
