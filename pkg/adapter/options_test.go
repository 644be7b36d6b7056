package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Defaults(t *testing.T) {
	options := NewOptions()
	assert.True(t, options.Writable())
	assert.True(t, options.Readable())
	assert.Zero(t, options.TTL())
	assert.Equal(t, DefaultNamespace, options.Namespace())
	assert.Empty(t, options.KeyPattern())
}

func TestOptions_TTL(t *testing.T) {
	options := NewOptions()

	t.Run("round-trip", func(t *testing.T) {
		require.NoError(t, options.SetTTL(100))
		assert.Equal(t, int64(100), options.TTL())
		assert.Equal(t, 100*time.Second, options.TTLDuration())
	})
	t.Run("zero disables expiry", func(t *testing.T) {
		require.NoError(t, options.SetTTL(0))
		assert.Zero(t, options.TTL())
	})
	t.Run("negative rejected, previous value kept", func(t *testing.T) {
		require.NoError(t, options.SetTTL(42))
		assert.ErrorIs(t, options.SetTTL(-1), ErrInvalidConfiguration)
		assert.Equal(t, int64(42), options.TTL())
	})
}

func TestOptions_Namespace(t *testing.T) {
	options := NewOptions()
	// Falsy-looking namespaces are legal and must round-trip untouched.
	for _, namespace := range []string{"app", "0", ""} {
		options.SetNamespace(namespace)
		assert.Equal(t, namespace, options.Namespace())
	}
}

func TestOptions_KeyPattern(t *testing.T) {
	options := NewOptions()

	t.Run("valid pattern round-trips", func(t *testing.T) {
		require.NoError(t, options.SetKeyPattern(`^\w+$`))
		assert.Equal(t, `^\w+$`, options.KeyPattern())
		assert.True(t, options.validKey("word"))
		assert.False(t, options.validKey("two words"))
	})
	t.Run("empty string resets validation", func(t *testing.T) {
		require.NoError(t, options.SetKeyPattern(""))
		assert.Empty(t, options.KeyPattern())
		assert.True(t, options.validKey("anything goes !"))
	})
	t.Run("broken pattern rejected, previous kept", func(t *testing.T) {
		require.NoError(t, options.SetKeyPattern(`^[a-z]+$`))
		assert.ErrorIs(t, options.SetKeyPattern(`([`), ErrInvalidConfiguration)
		assert.Equal(t, `^[a-z]+$`, options.KeyPattern())
	})
}

// TestOptions_SharedHandle verifies the handle-sharing contract: two adapters constructed with the same
// Options observe a mutation made through either one.
func TestOptions_SharedHandle(t *testing.T) {
	options := NewOptions()
	first := New(newFakeBackend(), options)
	second := New(newFakeBackend(), options)

	first.Options().SetWritable(false)
	assert.False(t, second.Options().Writable())

	stored, err := second.SetItem("key1", "value1")
	require.NoError(t, err)
	assert.False(t, stored, "the second adapter must observe the gate flipped through the first")

	second.Options().SetWritable(true)
	stored, err = first.SetItem("key1", "value1")
	require.NoError(t, err)
	assert.True(t, stored)
}
