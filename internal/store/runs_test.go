package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStore(t *testing.T) {
	s, err := NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.StartRun("run-1", "PROJ-12"))
	require.NoError(t, s.RecordAction("run-1", ActionRecord{Scenario: 0, Step: 0, Kind: "findAndClick", Target: "save-btn", Status: "ok"}))
	require.NoError(t, s.RecordAction("run-1", ActionRecord{Scenario: 0, Step: 1, Kind: "reload", Status: "failed", Detail: "net::ERR"}))
	require.NoError(t, s.RecordScenario("run-1", ScenarioRecord{Scenario: 0, Status: "done", ActionCount: 2, Rationale: "banner shown"}))
	require.NoError(t, s.FinishRun("run-1", "passed"))

	run, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "PROJ-12", run.Source)
	assert.Equal(t, "passed", run.Status)
	assert.NotNil(t, run.FinishedAt)

	actions, err := s.ListActions("run-1")
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "save-btn", actions[0].Target)
	assert.Equal(t, "net::ERR", actions[1].Detail)

	scenarios, err := s.ListScenarios("run-1")
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, 2, scenarios[0].ActionCount)

	assert.Error(t, s.FinishRun("missing", "passed"))
}
