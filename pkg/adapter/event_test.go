package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	t.Run("insertion order is preserved", func(t *testing.T) {
		params := NewParams(Param("token", 1), Param("key", "k"), Param("value", "v"))
		assert.Equal(t, []string{"token", "key", "value"}, params.Names())
	})
	t.Run("set replaces in place", func(t *testing.T) {
		params := NewParams(Param("key", "old"))
		params.Set("key", "new")
		assert.Equal(t, "new", params.String("key"))
		assert.Equal(t, []string{"key"}, params.Names())
	})
	t.Run("set appends when absent", func(t *testing.T) {
		params := NewParams(Param("key", "k"))
		params.Set("extra", int64(7))
		assert.Equal(t, []string{"key", "extra"}, params.Names())
		assert.Equal(t, int64(7), params.Int64("extra"))
	})
	t.Run("typed getters tolerate absence", func(t *testing.T) {
		params := NewParams()
		assert.Empty(t, params.String("missing"))
		assert.Nil(t, params.Strings("missing"))
		assert.Nil(t, params.Items("missing"))
		assert.Nil(t, params.Deltas("missing"))
		assert.Zero(t, params.Int64("missing"))
		_, found := params.Get("missing")
		assert.False(t, found)
	})
}

func TestEvent_StopPropagation(t *testing.T) {
	event := &Event{name: "getItem.pre"}
	assert.False(t, event.Stopped())
	event.StopPropagation("result")
	assert.True(t, event.Stopped())
	assert.Equal(t, "result", event.result)
}

func TestExceptionEvent_Recovery(t *testing.T) {
	event := &ExceptionEvent{throw: true}
	assert.True(t, event.Throw(), "failures propagate unless explicitly recovered")
	event.SetThrow(false)
	event.SetResult("substitute")
	assert.False(t, event.Throw())
	assert.Equal(t, "substitute", event.Result())
}
