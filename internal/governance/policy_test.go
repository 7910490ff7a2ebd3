package governance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/stepwright/internal/action"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	res, err := engine.Evaluate(ctx, Request{Kind: action.KindFindAndClick, Target: "e2e-save"})
	require.NoError(t, err)
	assert.Equal(t, EffectAllow, res.Effect)

	engine.DenyKind(action.KindReload)
	res, err = engine.Evaluate(ctx, Request{Kind: action.KindReload})
	require.NoError(t, err)
	assert.Equal(t, EffectDeny, res.Effect)

	require.NoError(t, engine.DenyTargets(`(?i)delete|purge`))
	res, err = engine.Evaluate(ctx, Request{Kind: action.KindFindAndClick, Target: "e2e-Delete-account"})
	require.NoError(t, err)
	assert.Equal(t, EffectDeny, res.Effect)
	assert.Contains(t, res.Reason, "delete|purge")

	assert.Error(t, engine.DenyTargets(`(`))
}
