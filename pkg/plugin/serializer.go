package plugin

import (
	"fmt"
	"log/slog"

	"github.com/fezfez/stash/pkg/adapter"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Serializer transparently converts values to protobuf-encoded bytes before they reach the backend and
// back after they leave it, so byte-oriented backends can store arbitrary values. Encoding goes through
// structpb.Value, which means JSON-like semantics: integers round-trip as float64 and maps must be keyed
// by strings. Counter operations bypass the serializer since they work on the backend's native numbers.
type Serializer struct{}

var _ adapter.Interceptor = (*Serializer)(nil)

// Attach subscribes to the write pre hooks (encode) and the read post hooks (decode).
func (s *Serializer) Attach(b *adapter.Binder) {
	for _, op := range []string{adapter.OpSetItem, adapter.OpAddItem, adapter.OpReplaceItem} {
		b.Pre(op, func(event *adapter.Event) {
			encodeParam(event.Params(), "value")
		})
	}
	b.Pre(adapter.OpCheckAndSetItem, func(event *adapter.Event) {
		// The token is compared against the stored (already encoded) value, so it needs encoding too.
		encodeParam(event.Params(), "token")
		encodeParam(event.Params(), "value")
	})
	for _, op := range []string{adapter.OpSetItems, adapter.OpAddItems, adapter.OpReplaceItems} {
		b.Pre(op, func(event *adapter.Event) {
			pairs := event.Params().Items("pairs")
			encoded := make([]adapter.Item, len(pairs))
			for i, pair := range pairs {
				value, err := Encode(pair.Value)
				if err != nil {
					slog.Warn("Failed to encode cache value, storing it raw.",
						"key", pair.Key, "error", err)
					encoded[i] = pair
					continue
				}
				encoded[i] = adapter.Item{Key: pair.Key, Value: value}
			}
			event.Params().Set("pairs", encoded)
		})
	}
	b.Post(adapter.OpGetItem, func(event *adapter.PostEvent) {
		if raw, ok := event.Result().([]byte); ok {
			event.SetResult(decodeOrRaw(raw))
		}
	})
	b.Post(adapter.OpGetItems, func(event *adapter.PostEvent) {
		found, ok := event.Result().(map[string]any)
		if !ok {
			return
		}
		decoded := make(map[string]any, len(found))
		for key, value := range found {
			if raw, isBytes := value.([]byte); isBytes {
				decoded[key] = decodeOrRaw(raw)
			} else {
				decoded[key] = value
			}
		}
		event.SetResult(decoded)
	})
}

// Encode marshals a value to its protobuf wire form.
func Encode(value any) ([]byte, error) {
	wrapped, err := structpb.NewValue(value)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap value: %w", err)
	}
	encoded, err := proto.Marshal(wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return encoded, nil
}

// Decode unmarshals a value from its protobuf wire form.
func Decode(encoded []byte) (any, error) {
	wrapped := new(structpb.Value)
	if err := proto.Unmarshal(encoded, wrapped); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return wrapped.AsInterface(), nil
}

// encodeParam replaces a named param with its encoded form, leaving it raw when encoding fails (the
// backend then decides whether it can store the value).
func encodeParam(params *adapter.Params, name string) {
	value, exists := params.Get(name)
	if !exists {
		return
	}
	encoded, err := Encode(value)
	if err != nil {
		slog.Warn("Failed to encode cache value, storing it raw.", "param", name, "error", err)
		return
	}
	params.Set(name, encoded)
}

// decodeOrRaw decodes stored bytes, falling back to the raw bytes for payloads written without the
// serializer attached.
func decodeOrRaw(raw []byte) any {
	decoded, err := Decode(raw)
	if err != nil {
		return raw
	}
	return decoded
}
