// The operation facade. An Adapter wraps a concrete Backend with the public cache operation surface: every
// call runs through the pre / primitive / post-or-exception envelope, reads are gated on the readable
// option, writes on the writable option, keys are validated against the configured pattern, and batch
// operations are derived from the single-item primitives when the backend has no native batch support.
//
// Batch derivation walks the input strictly in caller-supplied order and never aborts on a per-item soft
// failure; a real backend error aborts and travels through the exception stage like any other failure.

package adapter

import (
	"fmt"
)

// Operation names, used as the prefix of hook names ("<op>.pre", "<op>.post", "<op>.exception").
const (
	OpGetItem         = "getItem"
	OpGetItems        = "getItems"
	OpHasItem         = "hasItem"
	OpHasItems        = "hasItems"
	OpGetMetadata     = "getMetadata"
	OpGetMetadatas    = "getMetadatas"
	OpSetItem         = "setItem"
	OpSetItems        = "setItems"
	OpAddItem         = "addItem"
	OpAddItems        = "addItems"
	OpReplaceItem     = "replaceItem"
	OpReplaceItems    = "replaceItems"
	OpRemoveItem      = "removeItem"
	OpRemoveItems     = "removeItems"
	OpIncrementItem   = "incrementItem"
	OpIncrementItems  = "incrementItems"
	OpDecrementItem   = "decrementItem"
	OpDecrementItems  = "decrementItems"
	OpTouchItem       = "touchItem"
	OpTouchItems      = "touchItems"
	OpCheckAndSetItem = "checkAndSetItem"
	OpCapabilities    = "getCapabilities"
	OpFlush           = "flush"
)

// Adapter is the public face of a cache storage backend. It is safe for concurrent use as long as the
// backend is; options mutation while operations are in flight must be serialized by the caller.
type Adapter struct {
	backend  Backend
	options  *Options
	registry *registry
}

// New wraps a backend. A nil options handle gets fresh defaults; passing a shared handle attaches this
// adapter to it, so later mutations through any holder apply here too.
func New(backend Backend, options *Options) *Adapter {
	if options == nil {
		options = NewOptions()
	}
	return &Adapter{backend: backend, options: options, registry: newRegistry()}
}

// Options returns the live options handle shared with every other holder.
func (a *Adapter) Options() *Options { return a.options }

// AddInterceptor attaches an interceptor and registers its handlers. Attaching the same instance twice is
// a no-op; the first registration stays, and false is returned.
func (a *Adapter) AddInterceptor(interceptor Interceptor) bool {
	return a.registry.add(interceptor, &Binder{reg: a.registry, owner: interceptor})
}

// RemoveInterceptor detaches an interceptor and all handlers it registered. Returns false when the
// instance wasn't attached.
func (a *Adapter) RemoveInterceptor(interceptor Interceptor) bool {
	return a.registry.remove(interceptor)
}

// HasInterceptor reports whether the interceptor instance is currently attached.
func (a *Adapter) HasInterceptor(interceptor Interceptor) bool {
	return a.registry.has(interceptor)
}

// Interceptors returns the attached interceptors in attachment order.
func (a *Adapter) Interceptors() []Interceptor {
	return a.registry.list()
}

// execute runs one operation through the event envelope: pre (may mutate params or short-circuit), the
// primitive, then post on success or exception on failure. A short-circuited call still fires post and
// never fires exception; post and exception are mutually exclusive for a single invocation.
func (a *Adapter) execute(op string, params *Params, primitive func(*Params) (any, error)) (any, error) {
	if result, stopped := a.triggerPre(op, params); stopped {
		return a.triggerPost(op, params, result), nil
	}
	result, err := primitive(params)
	if err != nil {
		return a.triggerException(op, params, fmt.Errorf("%s: %w", op, err))
	}
	return a.triggerPost(op, params, result), nil
}

// assertValidKeys rejects keys that don't match the configured key pattern.
func (a *Adapter) assertValidKeys(keys ...string) error {
	for _, key := range keys {
		if !a.options.validKey(key) {
			return fmt.Errorf("%w: %q doesn't match pattern %q", ErrInvalidKey, key, a.options.KeyPattern())
		}
	}
	return nil
}

// GetItem returns the value stored under key. The second return is the success flag: false on a miss, on a
// disabled reader, and on a failure an interceptor recovered into an empty result.
func (a *Adapter) GetItem(key string) (any, bool, error) {
	if !a.options.Readable() {
		return nil, false, nil
	}
	if err := a.assertValidKeys(key); err != nil {
		return nil, false, err
	}
	var hit bool
	result, err := a.execute(OpGetItem, NewParams(Param("key", key)), func(p *Params) (any, error) {
		value, found, err := a.backend.GetItem(p.String("key"))
		if err != nil {
			return nil, err
		}
		hit = found
		if !found {
			return nil, nil
		}
		return value, nil
	})
	if err != nil {
		return nil, false, err
	}
	// An interceptor that short-circuited or substituted a value counts as a hit.
	return result, hit || result != nil, nil
}

// GetItems returns the found subset of keys as a key to value mapping; missing keys are absent. Items are
// fetched in input order when the backend has no native multi-get.
func (a *Adapter) GetItems(keys []string) (map[string]any, error) {
	if !a.options.Readable() {
		return map[string]any{}, nil
	}
	if err := a.assertValidKeys(keys...); err != nil {
		return nil, err
	}
	result, err := a.execute(OpGetItems, NewParams(Param("keys", keys)), func(p *Params) (any, error) {
		wanted := p.Strings("keys")
		if bulk, ok := a.backend.(BulkGetter); ok {
			return bulk.GetItems(wanted)
		}
		found := make(map[string]any, len(wanted))
		for _, key := range wanted {
			value, hit, err := a.backend.GetItem(key)
			if err != nil {
				return nil, err
			}
			if hit {
				found[key] = value
			}
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return asMap[any](result), nil
}

// HasItem reports whether key exists and isn't expired.
func (a *Adapter) HasItem(key string) (bool, error) {
	if !a.options.Readable() {
		return false, nil
	}
	if err := a.assertValidKeys(key); err != nil {
		return false, err
	}
	result, err := a.execute(OpHasItem, NewParams(Param("key", key)), func(p *Params) (any, error) {
		found, err := a.backend.HasItem(p.String("key"))
		if err != nil {
			return nil, err
		}
		return found, nil
	})
	if err != nil {
		return false, err
	}
	return result == true, nil
}

// HasItems returns the subset of keys that exist, in input order.
func (a *Adapter) HasItems(keys []string) ([]string, error) {
	if !a.options.Readable() {
		return []string{}, nil
	}
	if err := a.assertValidKeys(keys...); err != nil {
		return nil, err
	}
	result, err := a.execute(OpHasItems, NewParams(Param("keys", keys)), func(p *Params) (any, error) {
		wanted := p.Strings("keys")
		if bulk, ok := a.backend.(BulkHaser); ok {
			return bulk.HasItems(wanted)
		}
		found := make([]string, 0, len(wanted))
		for _, key := range wanted {
			hit, err := a.backend.HasItem(key)
			if err != nil {
				return nil, err
			}
			if hit {
				found = append(found, key)
			}
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return asStrings(result), nil
}

// GetMetadata returns the metadata stored for key, found=false on miss.
func (a *Adapter) GetMetadata(key string) (Metadata, bool, error) {
	if !a.options.Readable() {
		return Metadata{}, false, nil
	}
	if err := a.assertValidKeys(key); err != nil {
		return Metadata{}, false, err
	}
	result, err := a.execute(OpGetMetadata, NewParams(Param("key", key)), func(p *Params) (any, error) {
		metadata, found, err := a.backend.Metadata(p.String("key"))
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return metadata, nil
	})
	if err != nil {
		return Metadata{}, false, err
	}
	metadata, ok := result.(Metadata)
	return metadata, ok, nil
}

// GetMetadatas returns metadata for the found subset of keys.
func (a *Adapter) GetMetadatas(keys []string) (map[string]Metadata, error) {
	if !a.options.Readable() {
		return map[string]Metadata{}, nil
	}
	if err := a.assertValidKeys(keys...); err != nil {
		return nil, err
	}
	result, err := a.execute(OpGetMetadatas, NewParams(Param("keys", keys)), func(p *Params) (any, error) {
		wanted := p.Strings("keys")
		if bulk, ok := a.backend.(BulkMetadataReader); ok {
			return bulk.Metadatas(wanted)
		}
		found := make(map[string]Metadata, len(wanted))
		for _, key := range wanted {
			metadata, hit, err := a.backend.Metadata(key)
			if err != nil {
				return nil, err
			}
			if hit {
				found[key] = metadata
			}
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	return asMap[Metadata](result), nil
}

// SetItem stores value under key. Returns false when the write was rejected or writing is disabled.
func (a *Adapter) SetItem(key string, value any) (bool, error) {
	return a.writeOne(OpSetItem, key, value, a.backend.SetItem)
}

// AddItem stores value only when key is absent; an existing key is a soft failure and is never overwritten.
func (a *Adapter) AddItem(key string, value any) (bool, error) {
	return a.writeOne(OpAddItem, key, value, a.backend.AddItem)
}

// ReplaceItem stores value only when key already exists; a missing key is a soft failure.
func (a *Adapter) ReplaceItem(key string, value any) (bool, error) {
	return a.writeOne(OpReplaceItem, key, value, a.backend.ReplaceItem)
}

// writeOne is the shared envelope of the single-item write operations.
func (a *Adapter) writeOne(op, key string, value any,
	primitive func(string, any) (bool, error)) (bool, error) {
	if !a.options.Writable() {
		return false, nil
	}
	if err := a.assertValidKeys(key); err != nil {
		return false, err
	}
	params := NewParams(Param("key", key), Param("value", value))
	result, err := a.execute(op, params, func(p *Params) (any, error) {
		currentValue, _ := p.Get("value")
		stored, err := primitive(p.String("key"), currentValue)
		if err != nil {
			return nil, err
		}
		return stored, nil
	})
	if err != nil {
		return false, err
	}
	return result == true, nil
}

// SetItems stores all pairs in order and returns the keys that failed to write. With writing disabled
// every key fails.
func (a *Adapter) SetItems(pairs []Item) ([]string, error) {
	return a.writeMany(OpSetItems, pairs, func(wanted []Item) (any, error) {
		if bulk, ok := a.backend.(BulkSetter); ok {
			return bulk.SetItems(wanted)
		}
		failed := []string{}
		for _, pair := range wanted {
			stored, err := a.backend.SetItem(pair.Key, pair.Value)
			if err != nil {
				return nil, err
			}
			if !stored {
				failed = append(failed, pair.Key)
			}
		}
		return failed, nil
	})
}

// AddItems stores the pairs whose keys are absent and returns the keys that failed, i.e. already-present
// keys and rejected writes. Existence is probed first; an existing key never triggers a write.
func (a *Adapter) AddItems(pairs []Item) ([]string, error) {
	return a.writeMany(OpAddItems, pairs, func(wanted []Item) (any, error) {
		if bulk, ok := a.backend.(BulkAdder); ok {
			return bulk.AddItems(wanted)
		}
		failed := []string{}
		for _, pair := range wanted {
			exists, err := a.backend.HasItem(pair.Key)
			if err != nil {
				return nil, err
			}
			if exists {
				failed = append(failed, pair.Key)
				continue
			}
			stored, err := a.backend.SetItem(pair.Key, pair.Value)
			if err != nil {
				return nil, err
			}
			if !stored {
				failed = append(failed, pair.Key)
			}
		}
		return failed, nil
	})
}

// ReplaceItems stores the pairs whose keys already exist and returns the keys that failed, i.e. missing
// keys and rejected writes. Existence is probed first; a missing key never triggers a write.
func (a *Adapter) ReplaceItems(pairs []Item) ([]string, error) {
	return a.writeMany(OpReplaceItems, pairs, func(wanted []Item) (any, error) {
		if bulk, ok := a.backend.(BulkReplacer); ok {
			return bulk.ReplaceItems(wanted)
		}
		failed := []string{}
		for _, pair := range wanted {
			exists, err := a.backend.HasItem(pair.Key)
			if err != nil {
				return nil, err
			}
			if !exists {
				failed = append(failed, pair.Key)
				continue
			}
			stored, err := a.backend.SetItem(pair.Key, pair.Value)
			if err != nil {
				return nil, err
			}
			if !stored {
				failed = append(failed, pair.Key)
			}
		}
		return failed, nil
	})
}

// writeMany is the shared envelope of the batch write operations.
func (a *Adapter) writeMany(op string, pairs []Item, primitive func([]Item) (any, error)) ([]string, error) {
	keys := make([]string, len(pairs))
	for i, pair := range pairs {
		keys[i] = pair.Key
	}
	if !a.options.Writable() {
		return keys, nil
	}
	if err := a.assertValidKeys(keys...); err != nil {
		return nil, err
	}
	result, err := a.execute(op, NewParams(Param("pairs", pairs)), func(p *Params) (any, error) {
		return primitive(p.Items("pairs"))
	})
	if err != nil {
		return nil, err
	}
	return asStrings(result), nil
}

// RemoveItem deletes key. Returns false when the key wasn't there or writing is disabled.
func (a *Adapter) RemoveItem(key string) (bool, error) {
	if !a.options.Writable() {
		return false, nil
	}
	if err := a.assertValidKeys(key); err != nil {
		return false, err
	}
	result, err := a.execute(OpRemoveItem, NewParams(Param("key", key)), func(p *Params) (any, error) {
		removed, err := a.backend.RemoveItem(p.String("key"))
		if err != nil {
			return nil, err
		}
		return removed, nil
	})
	if err != nil {
		return false, err
	}
	return result == true, nil
}

// RemoveItems deletes the keys in order and returns the ones that failed (weren't there). With writing
// disabled every key fails.
func (a *Adapter) RemoveItems(keys []string) ([]string, error) {
	return a.keysOp(OpRemoveItems, keys, func(wanted []string) (any, error) {
		if bulk, ok := a.backend.(BulkRemover); ok {
			return bulk.RemoveItems(wanted)
		}
		failed := []string{}
		for _, key := range wanted {
			removed, err := a.backend.RemoveItem(key)
			if err != nil {
				return nil, err
			}
			if !removed {
				failed = append(failed, key)
			}
		}
		return failed, nil
	})
}

// TouchItem resets the TTL of key. Returns false on miss, on a static-TTL backend, and when writing is
// disabled.
func (a *Adapter) TouchItem(key string) (bool, error) {
	if !a.options.Writable() {
		return false, nil
	}
	if err := a.assertValidKeys(key); err != nil {
		return false, err
	}
	result, err := a.execute(OpTouchItem, NewParams(Param("key", key)), func(p *Params) (any, error) {
		touched, err := a.backend.TouchItem(p.String("key"))
		if err != nil {
			return nil, err
		}
		return touched, nil
	})
	if err != nil {
		return false, err
	}
	return result == true, nil
}

// TouchItems resets TTLs in order and returns the keys that failed.
func (a *Adapter) TouchItems(keys []string) ([]string, error) {
	return a.keysOp(OpTouchItems, keys, func(wanted []string) (any, error) {
		if bulk, ok := a.backend.(BulkToucher); ok {
			return bulk.TouchItems(wanted)
		}
		failed := []string{}
		for _, key := range wanted {
			touched, err := a.backend.TouchItem(key)
			if err != nil {
				return nil, err
			}
			if !touched {
				failed = append(failed, key)
			}
		}
		return failed, nil
	})
}

// keysOp is the shared envelope of the key-list write operations (removeItems, touchItems).
func (a *Adapter) keysOp(op string, keys []string, primitive func([]string) (any, error)) ([]string, error) {
	if !a.options.Writable() {
		failed := make([]string, len(keys))
		copy(failed, keys)
		return failed, nil
	}
	if err := a.assertValidKeys(keys...); err != nil {
		return nil, err
	}
	result, err := a.execute(op, NewParams(Param("keys", keys)), func(p *Params) (any, error) {
		return primitive(p.Strings("keys"))
	})
	if err != nil {
		return nil, err
	}
	return asStrings(result), nil
}

// IncrementItem adds delta to the numeric item under key and returns the new value, ok=false on miss.
func (a *Adapter) IncrementItem(key string, delta int64) (int64, bool, error) {
	return a.counterOne(OpIncrementItem, key, delta, a.backend.IncrementItem)
}

// DecrementItem subtracts delta from the numeric item under key and returns the new value, ok=false on
// miss.
func (a *Adapter) DecrementItem(key string, delta int64) (int64, bool, error) {
	return a.counterOne(OpDecrementItem, key, delta, a.backend.DecrementItem)
}

// counterOne is the shared envelope of the single-item counter operations.
func (a *Adapter) counterOne(op, key string, delta int64,
	primitive func(string, int64) (int64, bool, error)) (int64, bool, error) {
	if !a.options.Writable() {
		return 0, false, nil
	}
	if err := a.assertValidKeys(key); err != nil {
		return 0, false, err
	}
	params := NewParams(Param("key", key), Param("delta", delta))
	result, err := a.execute(op, params, func(p *Params) (any, error) {
		newValue, ok, err := primitive(p.String("key"), p.Int64("delta"))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return newValue, nil
	})
	if err != nil {
		return 0, false, err
	}
	newValue, ok := result.(int64)
	return newValue, ok, nil
}

// IncrementItems applies the deltas in order and returns key->newValue for the keys that succeeded.
func (a *Adapter) IncrementItems(deltas []Delta) (map[string]int64, error) {
	return a.counterMany(OpIncrementItems, deltas, func(wanted []Delta) (any, error) {
		if bulk, ok := a.backend.(BulkIncrementer); ok {
			return bulk.IncrementItems(wanted)
		}
		return a.deriveCounters(wanted, a.backend.IncrementItem)
	})
}

// DecrementItems applies the deltas in order and returns key->newValue for the keys that succeeded.
func (a *Adapter) DecrementItems(deltas []Delta) (map[string]int64, error) {
	return a.counterMany(OpDecrementItems, deltas, func(wanted []Delta) (any, error) {
		if bulk, ok := a.backend.(BulkDecrementer); ok {
			return bulk.DecrementItems(wanted)
		}
		return a.deriveCounters(wanted, a.backend.DecrementItem)
	})
}

// counterMany is the shared envelope of the batch counter operations.
func (a *Adapter) counterMany(op string, deltas []Delta,
	primitive func([]Delta) (any, error)) (map[string]int64, error) {
	if !a.options.Writable() {
		return map[string]int64{}, nil
	}
	keys := make([]string, len(deltas))
	for i, delta := range deltas {
		keys[i] = delta.Key
	}
	if err := a.assertValidKeys(keys...); err != nil {
		return nil, err
	}
	result, err := a.execute(op, NewParams(Param("deltas", deltas)), func(p *Params) (any, error) {
		return primitive(p.Deltas("deltas"))
	})
	if err != nil {
		return nil, err
	}
	return asMap[int64](result), nil
}

// deriveCounters applies a counter primitive per delta in order, collecting the successes.
func (a *Adapter) deriveCounters(deltas []Delta,
	primitive func(string, int64) (int64, bool, error)) (map[string]int64, error) {
	updated := make(map[string]int64, len(deltas))
	for _, delta := range deltas {
		newValue, ok, err := primitive(delta.Key, delta.Value)
		if err != nil {
			return nil, err
		}
		if ok {
			updated[delta.Key] = newValue
		}
	}
	return updated, nil
}

// CheckAndSetItem writes value only when the currently stored value equals token. Returns false on a
// token mismatch, a miss, and when writing is disabled.
func (a *Adapter) CheckAndSetItem(token any, key string, value any) (bool, error) {
	if !a.options.Writable() {
		return false, nil
	}
	if err := a.assertValidKeys(key); err != nil {
		return false, err
	}
	params := NewParams(Param("token", token), Param("key", key), Param("value", value))
	result, err := a.execute(OpCheckAndSetItem, params, func(p *Params) (any, error) {
		currentToken, _ := p.Get("token")
		currentValue, _ := p.Get("value")
		stored, err := a.backend.CheckAndSetItem(currentToken, p.String("key"), currentValue)
		if err != nil {
			return nil, err
		}
		return stored, nil
	})
	if err != nil {
		return false, err
	}
	return result == true, nil
}

// Capabilities returns the backend's ability descriptor, wrapped in the same event envelope as every other
// operation so interceptors can observe (or substitute) it.
func (a *Adapter) Capabilities() Capabilities {
	result, err := a.execute(OpCapabilities, NewParams(), func(*Params) (any, error) {
		return a.backend.Capabilities(), nil
	})
	if err != nil {
		return Capabilities{}
	}
	capabilities, _ := result.(Capabilities)
	return capabilities
}

// Flush wipes all items. Capability-gated: backends without flush support yield ErrNotSupported.
func (a *Adapter) Flush() error {
	flusher, ok := a.backend.(Flusher)
	if !ok {
		return fmt.Errorf("%w: flush", ErrNotSupported)
	}
	if !a.options.Writable() {
		return nil
	}
	_, err := a.execute(OpFlush, NewParams(), func(*Params) (any, error) {
		return nil, flusher.Flush()
	})
	return err
}

// Keys enumerates the backend's live keys when it supports listing; the RESP port's KEYS command relies on
// it. Not part of the operation surface, so no event envelope.
func (a *Adapter) Keys() ([]string, error) {
	lister, ok := a.backend.(KeyLister)
	if !ok {
		return nil, fmt.Errorf("%w: key listing", ErrNotSupported)
	}
	return lister.Keys()
}

// asMap coerces an envelope result back into a typed map, tolerating interceptors that replaced the result
// with something unexpected.
func asMap[V any](result any) map[string]V {
	if typed, ok := result.(map[string]V); ok {
		return typed
	}
	return map[string]V{}
}

// asStrings coerces an envelope result back into a key list.
func asStrings(result any) []string {
	if typed, ok := result.([]string); ok {
		return typed
	}
	return []string{}
}
