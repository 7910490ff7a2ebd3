package scenario

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steps(types ...StepType) []Step {
	out := make([]Step, 0, len(types))
	for _, ty := range types {
		out = append(out, Step{Type: ty, Text: string(ty)})
	}
	return out
}

func TestActionCount(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
		want  int
	}{
		{"single when", steps(StepGiven, StepWhen, StepThen), 1},
		{"and after then is not counted", steps(StepGiven, StepWhen, StepThen, StepAnd), 1},
		{"ands inside window", steps(StepGiven, StepWhen, StepAnd, StepAnd, StepAnd, StepThen), 4},
		{"given and is excluded", steps(StepGiven, StepAnd, StepWhen, StepThen), 1},
		{"two whens before then", steps(StepGiven, StepWhen, StepWhen, StepAnd, StepThen), 3},
		{"when after first then is ignored", steps(StepGiven, StepWhen, StepThen, StepWhen, StepAnd), 1},
		{"no then", steps(StepGiven, StepWhen, StepAnd), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ActionCount(tt.steps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActionCount_NoWhen(t *testing.T) {
	_, err := ActionCount(steps(StepGiven, StepAnd, StepThen, StepAnd))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoWhenStep))
}

func TestCountedSteps_PreservesOrder(t *testing.T) {
	in := []Step{
		{Type: StepGiven, Text: "g"},
		{Type: StepWhen, Text: "w1"},
		{Type: StepAnd, Text: "a1"},
		{Type: StepThen, Text: "t"},
	}
	got := CountedSteps(in)
	require.Len(t, got, 2)
	assert.Equal(t, "w1", got[0].Text)
	assert.Equal(t, "a1", got[1].Text)
}

func TestOutcomeSteps(t *testing.T) {
	in := []Step{
		{Type: StepGiven, Text: "g"},
		{Type: StepAnd, Text: "ga"},
		{Type: StepWhen, Text: "w"},
		{Type: StepAnd, Text: "wa"},
		{Type: StepThen, Text: "t1"},
		{Type: StepAnd, Text: "t2"},
	}
	got := OutcomeSteps(in)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].Text)
	assert.Equal(t, "t2", got[1].Text)
	assert.True(t, HasThen(in))
	assert.False(t, HasThen(in[:4]))
}
