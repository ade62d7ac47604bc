package artifact

import (
	"testing"

	"github.com/hupe1980/stylemesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.ArtifactStore = (*FileStore)(nil)

func TestFileStore_Lifecycle(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Save("u1-1", "photo.jpg", []byte("p")))
	require.NoError(t, fs.Save("u1-1", "outfit-0.png", []byte("o")))
	require.NoError(t, fs.Save("u1-1", "photo.jpg", []byte("p2")))

	data, err := fs.Get("u1-1", "photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "p2", string(data))

	ids, err := fs.List("u1-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"outfit-0.png", "photo.jpg"}, ids)

	require.NoError(t, fs.Delete("u1-1", "photo.jpg"))
	assert.ErrorIs(t, fs.Delete("u1-1", "photo.jpg"), ErrNotFound)

	_, err = fs.Get("u1-1", "photo.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.DeleteSession("u1-1"))
	require.NoError(t, fs.DeleteSession("unknown"))

	ids, err = fs.List("u1-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), func(o *Options) { o.MaxBytes = 4 })
	require.NoError(t, err)

	assert.Error(t, fs.Save("..", "x", []byte("1")))
	assert.Error(t, fs.Save("s", "../x", []byte("1")))
	assert.Error(t, fs.Save("s", "", []byte("1")))
	assert.ErrorIs(t, fs.Save("s", "big", []byte("12345")), ErrTooLarge)
}
