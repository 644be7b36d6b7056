package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fezfez/stash/pkg/adapter"
	"github.com/fezfez/stash/pkg/backend/null"
)

// erringBackend fails every read and write with a fixed error; the remaining primitives fall through to
// the blackhole store.
type erringBackend struct {
	*null.Store
	err error
}

func (b *erringBackend) GetItem(string) (any, bool, error) { return nil, false, b.err }
func (b *erringBackend) SetItem(string, any) (bool, error) { return false, b.err }
func (b *erringBackend) RemoveItem(string) (bool, error)   { return false, b.err }
func (b *erringBackend) HasItem(string) (bool, error)      { return false, b.err }

func TestExceptionHandler_RecoversFailures(t *testing.T) {
	backendErr := errors.New("backend unreachable")
	cache := adapter.New(&erringBackend{Store: null.New(), err: backendErr}, nil)

	var seen []error
	cache.AddInterceptor(&ExceptionHandler{Callback: func(err error) { seen = append(seen, err) }})

	t.Run("read becomes a miss", func(t *testing.T) {
		value, found, err := cache.GetItem("key1")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, value)
	})
	t.Run("write reports false", func(t *testing.T) {
		stored, err := cache.SetItem("key1", "value1")
		require.NoError(t, err)
		assert.False(t, stored)
	})
	t.Run("batch read comes back empty", func(t *testing.T) {
		found, err := cache.GetItems([]string{"key1", "key2"})
		require.NoError(t, err)
		assert.Empty(t, found)
	})
	t.Run("callback observed every failure", func(t *testing.T) {
		require.Len(t, seen, 3)
		for _, err := range seen {
			assert.ErrorIs(t, err, backendErr)
		}
	})
}

func TestExceptionHandler_Rethrow(t *testing.T) {
	backendErr := errors.New("backend unreachable")
	cache := adapter.New(&erringBackend{Store: null.New(), err: backendErr}, nil)

	var seen error
	cache.AddInterceptor(&ExceptionHandler{Rethrow: true, Callback: func(err error) { seen = err }})

	_, _, err := cache.GetItem("key1")
	assert.ErrorIs(t, err, backendErr, "with Rethrow set the handler only observes")
	assert.ErrorIs(t, seen, backendErr)
}
