package planning_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/planning/planningtest"
)

func TestSession_CloseIsIdempotentAndSwallowsErrors(t *testing.T) {
	svc := planningtest.NewScriptedService()
	svc.CloseErr = errors.New("already gone")
	ctx := context.Background()

	sess, err := planning.Open(ctx, svc, planning.SessionValidation, "judge")
	require.NoError(t, err)
	assert.Equal(t, planning.SessionValidation, sess.Kind())

	sess.Close(ctx)
	sess.Close(ctx)
	assert.Equal(t, []string{"sess-1"}, svc.Closed())

	_, err = sess.Ask(ctx, "hello")
	assert.True(t, errors.Is(err, planning.ErrUnknownSession))
}

func TestSession_AskSendsAttachments(t *testing.T) {
	svc := planningtest.NewScriptedService("PASS")
	ctx := context.Background()
	sess, err := planning.Open(ctx, svc, planning.SessionValidation, "judge")
	require.NoError(t, err)

	shot := planning.Attachment{Name: "after.png", MIMEType: "image/png", Data: []byte{1}}
	reply, err := sess.Ask(ctx, "judge this", shot)
	require.NoError(t, err)
	assert.Equal(t, "PASS", reply)
	assert.True(t, svc.Sent()[0].Attachments[0].IsImage())
}
