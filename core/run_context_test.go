package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext_EmitEventStateAndArtifacts(t *testing.T) {
	rc, emitCh, _ := newRunContextForTest()
	rc.SetState("foo", "bar")
	rc.AddArtifact("file1")

	require.NoError(t, rc.EmitEvent(NewEvent(rc.RunID, "stylist")))

	received := <-emitCh
	assert.Equal(t, "bar", received.Actions.StateDelta["foo"])
	assert.Equal(t, 1, received.Actions.ArtifactDelta["file1"])
	assert.Empty(t, rc.StateDelta)
	assert.Empty(t, rc.Artifacts)
}

func TestRunContext_EmitWithoutChannel(t *testing.T) {
	rc := NewRunContext(context.Background(), "s", "r", AgentInfo{}, Content{})
	assert.Error(t, rc.EmitEvent(NewEvent("r", "a")))
}

func TestRunContext_EmitHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := NewRunContext(ctx, "s", "r", AgentInfo{}, Content{}, func(o *RunContextOptions) {
		o.Emit = make(chan Event)
	})
	assert.ErrorIs(t, rc.EmitEvent(NewEvent("r", "a")), context.Canceled)
}

func TestRunContext_CommitStateDelta(t *testing.T) {
	rc, _, store := newRunContextForTest()
	rc.SetState("k1", 123)

	require.NoError(t, rc.CommitStateDelta())
	assert.Equal(t, 123, store.applied[rc.SessionID]["k1"])
	assert.Empty(t, rc.StateDelta)

	v, ok := rc.GetState("k1")
	require.True(t, ok)
	assert.Equal(t, 123, v)
}

func TestRunContext_Artifacts(t *testing.T) {
	rc, _, _ := newRunContextForTest()

	require.NoError(t, rc.SaveArtifact("photo", []byte("jpeg")))
	assert.Equal(t, []string{"photo"}, rc.Artifacts)

	b, err := rc.GetArtifact("photo")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(b))
}

func TestRunContext_RefreshSessionNotFound(t *testing.T) {
	rc, _, store := newRunContextForTest()
	require.NoError(t, store.Delete(rc.SessionID))

	err := rc.RefreshSession()
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestModelLimiter(t *testing.T) {
	rc, _, _ := newRunContextForTest()

	require.NoError(t, rc.Limiter.Increment())
	require.NoError(t, rc.Limiter.Increment())
	assert.Equal(t, 0, rc.Limiter.Remaining())
	assert.ErrorIs(t, rc.Limiter.Increment(), ErrModelCallLimit)
	assert.Equal(t, 3, rc.Limiter.Count())

	assert.Equal(t, -1, NewModelLimiter(0).Remaining())
}
