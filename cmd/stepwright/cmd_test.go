package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/stepwright/internal/action"
	"github.com/rahul/stepwright/internal/governance"
	"github.com/rahul/stepwright/pkg/config"
)

func TestPrintScenarios(t *testing.T) {
	var out bytes.Buffer
	err := printScenarios(&out, "Given a form When the user types Ann And the user clicks save Then it is saved", false)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "Scenario 1: 2 action(s)")
	assert.Contains(t, got, "    Given a form")
	assert.Contains(t, got, "  * When the user types Ann")
	assert.Contains(t, got, "  * And the user clicks save")
	assert.Contains(t, got, "    Then it is saved")
}

func TestPrintScenarios_XML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printScenarios(&out, "Given a page When the user clicks Save Then it saves", true))
	assert.Contains(t, out.String(), `actionCount="1"`)
}

func TestBuildPolicy(t *testing.T) {
	gov, err := buildPolicy(config.PolicyConfig{DenyKinds: []string{"reload"}, DenyTargets: []string{"^e2e-delete"}})
	require.NoError(t, err)

	res, err := gov.Evaluate(context.Background(), governance.Request{Kind: action.KindReload})
	require.NoError(t, err)
	assert.Equal(t, governance.EffectDeny, res.Effect)

	res, err = gov.Evaluate(context.Background(), governance.Request{Kind: action.KindFindAndClick, Target: "e2e-delete-row"})
	require.NoError(t, err)
	assert.Equal(t, governance.EffectDeny, res.Effect)

	_, err = buildPolicy(config.PolicyConfig{DenyKinds: []string{"hover"}})
	assert.Error(t, err)
	_, err = buildPolicy(config.PolicyConfig{DenyTargets: []string{"("}})
	assert.Error(t, err)
}

func TestElementsCommand(t *testing.T) {
	page := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body>
<label for="email">Email</label><input id="email" data-test-id="e2e-email" type="email">
<button data-test-id="legacy-save">Save</button>
</body></html>`), 0o644))

	var out bytes.Buffer
	elementsCmd.SetOut(&out)
	require.NoError(t, elementsCmd.RunE(elementsCmd, []string{page}))
	assert.Contains(t, out.String(), `"test_id": "e2e-email"`)
	assert.Contains(t, out.String(), `"label": "Email"`)
	assert.NotContains(t, out.String(), "legacy-save")
}
