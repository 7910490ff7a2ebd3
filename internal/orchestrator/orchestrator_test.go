package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/stepwright/internal/governance"
	"github.com/rahul/stepwright/internal/orchestrator"
	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/planning/planningtest"
	"github.com/rahul/stepwright/internal/scenario"
	"github.com/rahul/stepwright/internal/store"
)

const (
	saveNarrative = "Given a user is on a record page When the user clicks Save Then the save is confirmed"

	savePage  = `<html><body><main><button data-test-id="e2e-save-btn">Save</button></main></body></html>`
	savedPage = `<html><body><main><div role="status" data-test-id="e2e-banner">Record saved</div><button data-test-id="e2e-save-btn">Save</button></main></body></html>`

	formNarrative = `Given a contact form
When the user types Ann into the name field
And the user clicks save
And the user clicks close
Then the dialog is gone`

	formPage = `<html><body><main>
<input data-test-id="e2e-name" placeholder="Name">
<button data-test-id="e2e-save">Save</button>
<button data-test-id="e2e-close">Close</button>
</main></body></html>`

	formPlan = `[{"type":"findAndType","text":"name","value":"Ann"},{"type":"findAndClick","text":"save"},{"type":"findAndClick","text":"close"}]`
)

func testConfig(t *testing.T) orchestrator.Config {
	t.Helper()
	return orchestrator.Config{
		TargetURL:   "http://app.test/records/1",
		ArtifactDir: t.TempDir(),
	}
}

func TestRun_SaveScenarioPasses(t *testing.T) {
	d := newFakeDriver(savePage)
	d.onClick["e2e-save-btn"] = savedPage
	svc := planningtest.NewScriptedService(
		`[{"type":"findAndClick","text":"save-btn"}]`,
		"PASS\nThe save is confirmed: a 'Record saved' banner is visible.",
	)

	report, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", saveNarrative)
	require.NoError(t, err)
	require.True(t, report.Passed())
	require.Len(t, report.Scenarios, 1)

	res := report.Scenarios[0]
	assert.Equal(t, orchestrator.StatusDone, res.Status)
	assert.Equal(t, 1, res.ActionCount)
	assert.Equal(t, 1, res.Executed)
	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.Success)
	assert.Equal(t, "The save is confirmed: a 'Record saved' banner is visible.", res.Validation.Rationale)

	assert.Equal(t, []string{"http://app.test/records/1"}, d.navTo)
	assert.Equal(t, []string{"click:e2e-save-btn"}, d.Calls())
	assert.Equal(t, []string{"sess-1", "sess-2"}, svc.Created())
	assert.ElementsMatch(t, []string{"sess-1", "sess-2"}, svc.Closed())
	assert.Zero(t, svc.Remaining())

	execFiles := svc.Attached("sess-1")
	require.Len(t, execFiles, 3)
	assert.Equal(t, "scenario-00.xml", execFiles[0].Name)
	assert.Equal(t, "initial.json", execFiles[1].Name)
	assert.True(t, execFiles[2].IsImage())

	shots := svc.Attached("sess-2")
	require.Len(t, shots, 2)
	assert.Equal(t, "initial.png", shots[0].Name)
	assert.Equal(t, "final.png", shots[1].Name)

	sent := svc.Sent()
	last := sent[len(sent)-1]
	assert.Equal(t, "sess-2", last.SessionID)
	assert.Contains(t, last.Text, "Then the save is confirmed")
	assert.Contains(t, last.Text, "Record saved")
}

func TestRun_RePlanKeepsExecutedPrefix(t *testing.T) {
	d := newFakeDriver(formPage)
	svc := planningtest.NewScriptedService(
		formPlan,
		// The planner tries to rewrite the executed action; it must not run again.
		`[{"type":"findAndType","text":"name","value":"Bob"},{"type":"findAndClick","text":"save"},{"type":"findAndClick","text":"close"}]`,
		formPlan,
		"PASS the dialog is gone",
	)

	report, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", formNarrative)
	require.NoError(t, err)
	require.True(t, report.Passed())
	assert.Equal(t, 3, report.Scenarios[0].ActionCount)
	assert.Equal(t, 3, report.Scenarios[0].Executed)
	assert.Equal(t, []string{"type:e2e-name=Ann", "click:e2e-save", "click:e2e-close"}, d.Calls())

	sent := svc.Sent()
	require.Len(t, sent, 4)
	assert.Contains(t, sent[1].Text, "only actions 2 to 3 may change")
	assert.Contains(t, sent[2].Text, "only actions 3 to 3 may change")
	assert.Len(t, sent[1].Attachments, 2)
}

func TestRun_RePlanCountMismatchAborts(t *testing.T) {
	d := newFakeDriver(formPage)
	svc := planningtest.NewScriptedService(
		formPlan,
		`[{"type":"findAndType","text":"name","value":"Ann"},{"type":"findAndClick","text":"close"}]`,
	)

	report, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", formNarrative)
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrRePlanCountMismatch))
	assert.False(t, report.Passed())
	require.Len(t, report.Scenarios, 1)
	assert.Equal(t, orchestrator.StatusFailed, report.Scenarios[0].Status)
	assert.Equal(t, []string{"type:e2e-name=Ann"}, d.Calls())
	assert.Equal(t, []string{"sess-1"}, svc.Closed())
}

func TestRun_DriverFailureIsFatal(t *testing.T) {
	driverErr := errors.New("node is not visible")
	d := newFakeDriver(savePage)
	d.failOn["e2e-save-btn"] = driverErr
	svc := planningtest.NewScriptedService(`[{"type":"findAndClick","text":"save-btn"}]`)

	narrative := saveNarrative + "\nGiven another record When the user clicks Save Then it saves"
	report, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", narrative)
	require.Error(t, err)
	assert.True(t, errors.Is(err, orchestrator.ErrActionExecution))
	assert.True(t, errors.Is(err, driverErr))

	var execErr *orchestrator.ActionExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 0, execErr.Step)
	assert.Contains(t, err.Error(), "node is not visible")

	// The second scenario is never attempted.
	assert.Len(t, report.Scenarios, 1)
	assert.Equal(t, []string{"sess-1"}, svc.Created())
	assert.Equal(t, []string{"sess-1"}, svc.Closed())
}

func TestRun_UngroundedActionDropped(t *testing.T) {
	d := newFakeDriver(savePage)
	svc := planningtest.NewScriptedService(
		`[{"type":"findAndClick","text":"ghost-link"}]`,
		"FAIL nothing changed on the page",
	)
	narrative := "Given a record page When the user clicks the ghost link Then a ghost appears"

	report, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", narrative)
	require.NoError(t, err)
	assert.False(t, report.Passed())
	res := report.Scenarios[0]
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Executed)
	assert.Equal(t, orchestrator.StatusFailed, res.Status)
	assert.Equal(t, "nothing changed on the page", res.Validation.Rationale)
	assert.Empty(t, d.Calls())
}

func TestRun_UngroundedActionAborts(t *testing.T) {
	cfg := testConfig(t)
	cfg.UngroundedPolicy = orchestrator.UngroundedAbort
	d := newFakeDriver(savePage)
	svc := planningtest.NewScriptedService(`[{"type":"findAndClick","text":"ghost-link"}]`)
	narrative := "Given a record page When the user clicks the ghost link Then a ghost appears"

	_, err := orchestrator.New(cfg, d, svc).Run(context.Background(), "inline", narrative)
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrUngroundedAction))
	assert.Empty(t, d.Calls())
}

func TestRun_PolicyDenial(t *testing.T) {
	policy := governance.NewDefaultPolicyEngine()
	require.NoError(t, policy.DenyTargets("save"))
	d := newFakeDriver(savePage)
	svc := planningtest.NewScriptedService(`[{"type":"findAndClick","text":"save-btn"}]`)

	_, err := orchestrator.New(testConfig(t), d, svc, orchestrator.WithPolicy(policy)).
		Run(context.Background(), "inline", saveNarrative)
	require.Error(t, err)
	assert.True(t, errors.Is(err, orchestrator.ErrActionExecution))
	assert.Contains(t, err.Error(), "denied by policy")
	assert.Empty(t, d.Calls())
}

func TestRun_NoThenStepsFailsBeforeExecution(t *testing.T) {
	d := newFakeDriver(savePage)
	svc := planningtest.NewScriptedService()
	narrative := "Given a dashboard When the user reloads the page And the user waits for Ready"

	report, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", narrative)
	require.Error(t, err)
	assert.True(t, errors.Is(err, orchestrator.ErrNoThenSteps))
	assert.Equal(t, 2, report.Scenarios[0].ActionCount)
	assert.Empty(t, d.navTo)
	assert.Empty(t, d.Calls())
	assert.Empty(t, svc.Created())
}

func TestRun_ValidationTimeoutRestartsSession(t *testing.T) {
	d := newFakeDriver(savePage)
	d.onClick["e2e-save-btn"] = savedPage
	svc := planningtest.NewScriptedService(
		`[{"type":"findAndClick","text":"save-btn"}]`,
		planningtest.Timeout,
		"PASS banner shown",
	)

	report, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", saveNarrative)
	require.NoError(t, err)
	require.True(t, report.Passed())
	assert.Equal(t, "banner shown", report.Scenarios[0].Validation.Rationale)

	assert.Equal(t, []string{"sess-1", "sess-2", "sess-3"}, svc.Created())
	assert.ElementsMatch(t, []string{"sess-1", "sess-2", "sess-3"}, svc.Closed())
	// The restarted validation session gets both screenshots again.
	assert.Len(t, svc.Attached("sess-3"), 2)
	assert.Zero(t, svc.Remaining())
}

func TestRun_ValidationTimeoutAfterRestartIsFatal(t *testing.T) {
	d := newFakeDriver(savePage)
	svc := planningtest.NewScriptedService(
		`[{"type":"findAndClick","text":"save-btn"}]`,
		planningtest.Timeout,
		planningtest.Timeout,
	)

	report, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", saveNarrative)
	require.Error(t, err)
	assert.True(t, errors.Is(err, planning.ErrTimeout))
	assert.False(t, report.Passed())
	assert.Equal(t, []string{"sess-1", "sess-2", "sess-3"}, svc.Created())
	assert.ElementsMatch(t, []string{"sess-1", "sess-2", "sess-3"}, svc.Closed())
}

func TestRun_ContainmentTagMissing(t *testing.T) {
	cfg := testConfig(t)
	cfg.ContainmentTag = "dialog"
	d := newFakeDriver(savePage)
	svc := planningtest.NewScriptedService(`[{"type":"findAndClick","text":"save-btn"}]`)

	_, err := orchestrator.New(cfg, d, svc).Run(context.Background(), "inline", saveNarrative)
	require.Error(t, err)
	assert.True(t, errors.Is(err, orchestrator.ErrTagNotFound))
}

func TestRun_EmptyValidationReply(t *testing.T) {
	d := newFakeDriver(savePage)
	svc := planningtest.NewScriptedService(`[{"type":"findAndClick","text":"save-btn"}]`, "   ")

	_, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", saveNarrative)
	require.Error(t, err)
	assert.True(t, errors.Is(err, orchestrator.ErrNoValidationResponse))
	assert.ElementsMatch(t, []string{"sess-1", "sess-2"}, svc.Closed())
}

func TestRun_ParseErrorBeforeExecution(t *testing.T) {
	d := newFakeDriver(savePage)
	svc := planningtest.NewScriptedService()

	report, err := orchestrator.New(testConfig(t), d, svc).Run(context.Background(), "inline", "nothing to see here")
	require.Error(t, err)
	assert.True(t, errors.Is(err, scenario.ErrParse))
	assert.Empty(t, report.Scenarios)
	assert.Empty(t, d.navTo)
	assert.Empty(t, svc.Created())
}

func TestRun_KeepsArtifacts(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeepArtifacts = true
	d := newFakeDriver(savePage)
	d.onClick["e2e-save-btn"] = savedPage
	svc := planningtest.NewScriptedService(`[{"type":"findAndClick","text":"save-btn"}]`, "PASS")

	report, err := orchestrator.New(cfg, d, svc).Run(context.Background(), "inline", saveNarrative)
	require.NoError(t, err)

	root := filepath.Join(cfg.ArtifactDir, report.RunID)
	for _, name := range []string{
		"scenario-00.xml",
		"scenario-00/initial.html",
		"scenario-00/step-00.json",
		"scenario-00/step-00.png",
		"scenario-00/final.html",
		"scenario-00/validation-excerpt.html",
	} {
		_, err := os.Stat(filepath.Join(root, name))
		assert.NoError(t, err, name)
	}

	data, err := os.ReadFile(filepath.Join(root, "scenario-00/step-00.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "e2e-banner")
}

func TestRun_RecordsHistory(t *testing.T) {
	runs, err := store.NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer runs.Close()

	d := newFakeDriver(savePage)
	svc := planningtest.NewScriptedService(`[{"type":"findAndClick","text":"save-btn"}]`, "PASS saved")

	report, err := orchestrator.New(testConfig(t), d, svc, orchestrator.WithRecorder(runs)).
		Run(context.Background(), "issue-42", saveNarrative)
	require.NoError(t, err)

	run, err := runs.GetRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, "passed", run.Status)
	assert.Equal(t, "issue-42", run.Source)

	scenarios, err := runs.ListScenarios(report.RunID)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "done", scenarios[0].Status)
	assert.Equal(t, "saved", scenarios[0].Rationale)

	actions, err := runs.ListActions(report.RunID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "e2e-save-btn", actions[0].Target)
	assert.Equal(t, "ok", actions[0].Status)
}
