package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fezfez/stash/pkg/adapter"
	"github.com/fezfez/stash/pkg/backend/memory"
)

func newTestHandler(t *testing.T) (*respHandler, *adapter.Options) {
	t.Helper()
	options := adapter.NewOptions()
	cache := adapter.New(memory.New(t.Context(), options, 4 /*shardCount*/), options)
	handler, err := newRespHandler(cache)
	require.NoError(t, err)
	return handler, options
}

func command(name string, args ...string) respCommand {
	return respCommand{command: name, args: args}
}

func TestRespHandler_Validation(t *testing.T) {
	_, err := newRespHandler(nil)
	assert.Error(t, err)
}

func TestRespHandler_PingQuit(t *testing.T) {
	handler, _ := newTestHandler(t)
	assert.Equal(t, writeString("PONG"), handler.handle(command("PING")))
	assert.Equal(t, closeConnection(RespOk), handler.handle(command("quit")))
}

func TestRespHandler_SetGet(t *testing.T) {
	handler, _ := newTestHandler(t)

	t.Run("set then get", func(t *testing.T) {
		assert.Equal(t, writeString(RespOk), handler.handle(command("SET", "key1", "value1")))
		assert.Equal(t, writeString("value1"), handler.handle(command("GET", "key1")))
	})
	t.Run("get misses with nil", func(t *testing.T) {
		assert.Equal(t, writeNil(), handler.handle(command("GET", "absent")))
	})
	t.Run("lowercase commands work", func(t *testing.T) {
		assert.Equal(t, writeString(RespOk), handler.handle(command("set", "key2", "value2")))
		assert.Equal(t, writeString("value2"), handler.handle(command("get", "key2")))
	})
	t.Run("wrong arity", func(t *testing.T) {
		assert.NotNil(t, handler.handle(command("SET", "only-key")).err)
		assert.NotNil(t, handler.handle(command("GET")).err)
	})
}

func TestRespHandler_SetConditions(t *testing.T) {
	handler, _ := newTestHandler(t)

	t.Run("NX only writes absent keys", func(t *testing.T) {
		assert.Equal(t, writeString(RespOk), handler.handle(command("SET", "key1", "first", "NX")))
		assert.Equal(t, writeNil(), handler.handle(command("SET", "key1", "second", "NX")))
		assert.Equal(t, writeString("first"), handler.handle(command("GET", "key1")))
	})
	t.Run("XX only writes present keys", func(t *testing.T) {
		assert.Equal(t, writeNil(), handler.handle(command("SET", "missing", "value", "XX")))
		assert.Equal(t, writeString(RespOk), handler.handle(command("SET", "key1", "updated", "XX")))
	})
	t.Run("unknown condition is a syntax error", func(t *testing.T) {
		assert.NotNil(t, handler.handle(command("SET", "key1", "value", "BOGUS")).err)
	})
}

func TestRespHandler_DelExists(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.handle(command("SET", "k1", "v1"))
	handler.handle(command("SET", "k2", "v2"))

	assert.Equal(t, writeInt(2), handler.handle(command("EXISTS", "k1", "k2", "missing")))
	assert.Equal(t, writeInt(2), handler.handle(command("DEL", "k1", "k2", "missing")))
	assert.Equal(t, writeInt(0), handler.handle(command("EXISTS", "k1", "k2")))
}

func TestRespHandler_Counters(t *testing.T) {
	handler, _ := newTestHandler(t)

	t.Run("INCR seeds a missing key", func(t *testing.T) {
		assert.Equal(t, writeInt(1), handler.handle(command("INCR", "hits")))
		assert.Equal(t, writeInt(2), handler.handle(command("INCR", "hits")))
	})
	t.Run("INCRBY and DECRBY", func(t *testing.T) {
		assert.Equal(t, writeInt(12), handler.handle(command("INCRBY", "hits", "10")))
		assert.Equal(t, writeInt(7), handler.handle(command("DECRBY", "hits", "5")))
	})
	t.Run("DECR seeds with the negative delta", func(t *testing.T) {
		assert.Equal(t, writeInt(-1), handler.handle(command("DECR", "fresh")))
	})
	t.Run("non-numeric delta", func(t *testing.T) {
		assert.NotNil(t, handler.handle(command("INCRBY", "hits", "not-a-number")).err)
	})
}

func TestRespHandler_Touch(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.handle(command("SET", "k1", "v1"))
	assert.Equal(t, writeInt(1), handler.handle(command("TOUCH", "k1", "missing")))
}

func TestRespHandler_TTL(t *testing.T) {
	handler, options := newTestHandler(t)

	t.Run("missing key", func(t *testing.T) {
		assert.Equal(t, writeInt(-2), handler.handle(command("TTL", "missing")))
	})
	t.Run("key without expiry", func(t *testing.T) {
		handler.handle(command("SET", "eternal", "v"))
		assert.Equal(t, writeInt(-1), handler.handle(command("TTL", "eternal")))
	})
	t.Run("key with expiry reports remaining seconds", func(t *testing.T) {
		require.NoError(t, options.SetTTL(100))
		handler.handle(command("SET", "ephemeral", "v"))

		output := handler.handle(command("TTL", "ephemeral"))
		require.NotNil(t, output.writeInt)
		assert.InDelta(t, 100, *output.writeInt, 1)
	})
}

func TestRespHandler_Keys(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.handle(command("SET", "user:1", "a"))
	handler.handle(command("SET", "user:2", "b"))
	handler.handle(command("SET", "session:1", "c"))

	output := handler.handle(command("KEYS", "user:*"))
	require.NotNil(t, output.writeStrings)
	assert.ElementsMatch(t, []string{"user:1", "user:2"}, *output.writeStrings)

	output = handler.handle(command("KEYS", "*"))
	require.NotNil(t, output.writeStrings)
	assert.Len(t, *output.writeStrings, 3)
}

func TestRespHandler_FlushAll(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.handle(command("SET", "k1", "v1"))

	assert.Equal(t, writeString(RespOk), handler.handle(command("FLUSHALL")))
	assert.Equal(t, writeNil(), handler.handle(command("GET", "k1")))
}

func TestRespHandler_UnknownCommand(t *testing.T) {
	handler, _ := newTestHandler(t)
	assert.NotNil(t, handler.handle(command("SUBSCRIBE", "channel")).err)
}

// TestRespHandler_InterceptorsApply verifies protocol traffic runs through the adapter's operation
// surface, so attached interceptors see it.
func TestRespHandler_InterceptorsApply(t *testing.T) {
	options := adapter.NewOptions()
	cache := adapter.New(memory.New(t.Context(), options, 1), options)
	handler, err := newRespHandler(cache)
	require.NoError(t, err)

	options.SetWritable(false)
	assert.Equal(t, writeNil(), handler.handle(command("SET", "key1", "value1")),
		"a gated write reads as an unmet condition on the wire")

	options.SetWritable(true)
	handler.handle(command("SET", "key1", "value1"))
	assert.Equal(t, writeString("value1"), handler.handle(command("GET", "key1")))
}
