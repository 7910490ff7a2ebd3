package scenario

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleLine(t *testing.T) {
	got, err := Parse("Given a user is on a record page When the user clicks Save Then the save is confirmed")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, []Step{
		{Type: StepGiven, Text: "a user is on a record page"},
		{Type: StepWhen, Text: "the user clicks Save"},
		{Type: StepThen, Text: "the save is confirmed"},
	}, got[0].Steps)
}

func TestParse_DiscardsOutsideSpanAndAsides(t *testing.T) {
	narrative := `Story notes that mention nothing useful.
Given the inbox is open (seeded by fixture)
when the user types "hello" into search
AND presses enter
Then one result is shown
Reviewer: someone`

	got, err := Parse(narrative)
	require.NoError(t, err)
	require.Len(t, got, 1)

	steps := got[0].Steps
	require.Len(t, steps, 4)
	assert.Equal(t, Step{Type: StepGiven, Text: "the inbox is open"}, steps[0])
	assert.Equal(t, Step{Type: StepWhen, Text: `the user types \"hello\" into search`}, steps[1])
	assert.Equal(t, StepAnd, steps[2].Type)
	assert.Equal(t, "one result is shown", steps[3].Text)
}

func TestParse_SplitsScenariosOnGiven(t *testing.T) {
	narrative := "Given A When B Then C Given D When E And F Then G"

	got, err := Parse(narrative)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 1, got[1].Index)
	assert.Len(t, got[1].Steps, 4)
}

func TestParse_OmitsEmptyScenario(t *testing.T) {
	got, err := Parse("Given When B Then C Given")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StepWhen, got[0].Steps[0].Type)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		narrative string
	}{
		{"no given", "When the user clicks Then done"},
		{"no then", "Given a page When the user clicks"},
		{"then only before given", "Then nothing Given a page When x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.narrative)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse))
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestScenario_WriteXML(t *testing.T) {
	sc := Scenario{Index: 2, Steps: []Step{{Type: StepWhen, Text: "click <Save>"}}}

	var buf bytes.Buffer
	require.NoError(t, sc.WriteXML(&buf, 1))

	out := buf.String()
	assert.Contains(t, out, `<scenario index="2" actionCount="1">`)
	assert.Contains(t, out, `<step type="when">click &lt;Save&gt;</step>`)
}
