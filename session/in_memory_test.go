package session

import (
	"sync"
	"testing"

	"github.com/hupe1980/stylemesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_GetUnknown(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.Get("missing")
	require.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.Contains(t, err.Error(), "Session not found")

	assert.ErrorIs(t, s.AppendEvent("missing", core.NewEvent("r", "a")), core.ErrSessionNotFound)
	assert.ErrorIs(t, s.ApplyDelta("missing", map[string]any{"k": 1}), core.ErrSessionNotFound)
}

func TestInMemoryStore_Lifecycle(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.Create("")
	require.Error(t, err)

	created, err := s.Create("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", created.ID)

	require.NoError(t, s.AppendEvent("abc", core.NewUserMessageEvent("r", "hi")))
	require.NoError(t, s.ApplyDelta("abc", map[string]any{"occasion": "wedding"}))

	got, err := s.Get("abc")
	require.NoError(t, err)
	assert.Len(t, got.GetEvents(), 1)
	v, _ := got.GetState("occasion")
	assert.Equal(t, "wedding", v)

	// Returned sessions are clones.
	got.SetState("occasion", "office")
	again, _ := s.Get("abc")
	v, _ = again.GetState("occasion")
	assert.Equal(t, "wedding", v)

	require.NoError(t, s.Delete("abc"))
	require.NoError(t, s.Delete("abc"))
	_, err = s.Get("abc")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.Zero(t, s.Len())
}

func TestInMemoryStore_ConcurrentAppend(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.Create("c")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AppendEvent("c", core.NewMessageEvent("a", "x"))
		}()
	}
	wg.Wait()

	got, err := s.Get("c")
	require.NoError(t, err)
	assert.Len(t, got.GetEvents(), 50)
}
