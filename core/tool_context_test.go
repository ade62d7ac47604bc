package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolContext_BasicFunctionality(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	tc := NewToolContext(rc, "test-call-id")

	require.NoError(t, tc.Validate())
	assert.Equal(t, "test-session", tc.SessionID())
	assert.Equal(t, "test-run", tc.RunID())
	assert.Equal(t, "test-call-id", tc.FunctionCallID())
	assert.Equal(t, "stylist", tc.AgentName())
	assert.Equal(t, "photo_analysis", tc.AgentRole())
	assert.NotNil(t, tc.Logger())
}

func TestToolContext_ValidateRequiresCallID(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	assert.Error(t, NewToolContext(rc, "").Validate())
}

func TestToolContext_StateAndActions(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	tc := NewToolContext(rc, "call-1")

	tc.SetState("season", "autumn")
	tc.SkipSummarization()
	require.NoError(t, tc.SaveArtifact("a1", []byte("data")))

	v, ok := tc.GetState("season")
	require.True(t, ok)
	assert.Equal(t, "autumn", v)

	ev := NewFunctionResponseEvent("stylist", "call-1", "f", "ok", nil)
	tc.ApplyActions(&ev)

	assert.Equal(t, "autumn", ev.Actions.StateDelta["season"])
	assert.Equal(t, 4, ev.Actions.ArtifactDelta["a1"])
	require.NotNil(t, ev.Actions.SkipSummarization)
	assert.True(t, ev.IsFinalResponse())

	b, err := tc.LoadArtifact("a1")
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))
}

func TestToolContext_History(t *testing.T) {
	rc, _, _ := newRunContextForTest()
	rc.Session.AddEvent(NewUserMessageEvent("r", "hello"))

	tc := NewToolContext(rc, "call-1")
	assert.Len(t, tc.GetSessionHistory(), 1)
}
