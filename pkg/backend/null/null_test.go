package null

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fezfez/stash/pkg/adapter"
)

func TestStore_Blackhole(t *testing.T) {
	store := New()

	stored, err := store.SetItem("key1", "value1")
	require.NoError(t, err)
	assert.True(t, stored, "writes are accepted")

	_, found, err := store.GetItem("key1")
	require.NoError(t, err)
	assert.False(t, found, "and dropped")

	has, err := store.HasItem("key1")
	require.NoError(t, err)
	assert.False(t, has)

	added, err := store.AddItem("key1", "value1")
	require.NoError(t, err)
	assert.True(t, added, "the key is never present, so add always succeeds")

	replaced, err := store.ReplaceItem("key1", "value1")
	require.NoError(t, err)
	assert.False(t, replaced, "there is never an entry to replace")

	removed, err := store.RemoveItem("key1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok, err := store.IncrementItem("key1", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	touched, err := store.TouchItem("key1")
	require.NoError(t, err)
	assert.False(t, touched)

	stored, err = store.CheckAndSetItem("token", "key1", "value1")
	require.NoError(t, err)
	assert.False(t, stored)
}

// TestStore_BehindAdapter verifies the blackhole composes with the facade: batch adds always succeed,
// batch replaces always fail.
func TestStore_BehindAdapter(t *testing.T) {
	cache := adapter.New(New(), nil)

	failed, err := cache.AddItems([]adapter.Item{{Key: "k1", Value: 1}, {Key: "k2", Value: 2}})
	require.NoError(t, err)
	assert.Empty(t, failed)

	failed, err = cache.ReplaceItems([]adapter.Item{{Key: "k1", Value: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, failed)

	capabilities := cache.Capabilities()
	assert.True(t, capabilities.StaticTTL())
	assert.False(t, capabilities.Flushable())
	assert.ErrorIs(t, cache.Flush(), adapter.ErrNotSupported)
}
