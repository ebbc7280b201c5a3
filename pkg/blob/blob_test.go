package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir(), "/images")
	require.NoError(t, err)
	return store
}

func TestPutGetDelete(t *testing.T) {
	store := newTestStore(t)

	obj, err := store.Put("voyage-1.png", []byte("png bytes"))
	require.NoError(t, err)
	assert.Equal(t, "voyage-1.png", obj.Key)
	assert.Equal(t, "/images/voyage-1.png", obj.URL)
	assert.EqualValues(t, 9, obj.Size)

	data, err := store.Get("voyage-1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)

	require.NoError(t, store.Delete("voyage-1.png"))
	_, err = store.Get("voyage-1.png")
	assert.Error(t, err)
}

func TestListPrefixFiltering(t *testing.T) {
	store := newTestStore(t)

	for _, key := range []string{"voyage-1.png", "voyage-2.png", "other-1.png"} {
		_, err := store.Put(key, []byte("x"))
		require.NoError(t, err)
	}

	objects, err := store.List("voyage-")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	for _, obj := range objects {
		assert.Contains(t, obj.Key, "voyage-")
	}

	all, err := store.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNextSequence(t *testing.T) {
	store := newTestStore(t)

	seq, err := store.NextSequence("voyage")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	_, err = store.Put("voyage-1.png", []byte("x"))
	require.NoError(t, err)
	_, err = store.Put("voyage-7.webp", []byte("x"))
	require.NoError(t, err)

	seq, err = store.NextSequence("voyage")
	require.NoError(t, err)
	assert.Equal(t, 8, seq)

	// Another project is unaffected.
	seq, err = store.NextSequence("other")
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
}

func TestPutInvalidatesListingCache(t *testing.T) {
	store := newTestStore(t)

	objects, err := store.List("")
	require.NoError(t, err)
	assert.Empty(t, objects)

	_, err = store.Put("voyage-1.png", []byte("x"))
	require.NoError(t, err)

	objects, err = store.List("")
	require.NoError(t, err)
	assert.Len(t, objects, 1)
}

func TestRejectsPathEscapingKeys(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put("../escape.png", []byte("x"))
	assert.Error(t, err)
	_, err = store.Get("nested/key.png")
	assert.Error(t, err)
	assert.Error(t, store.Delete(".hidden"))
}

func TestSequenceOf(t *testing.T) {
	n, ok := SequenceOf("voyage-12.png")
	require.True(t, ok)
	assert.Equal(t, 12, n)

	n, ok = SequenceOf("my-project-3.webp")
	require.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = SequenceOf("noseq.png")
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "voyage-3.png", Key("voyage", 3, "png"))
	assert.Equal(t, "voyage-3.webp", Key("voyage", 3, ".webp"))
}
