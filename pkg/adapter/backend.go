// The primitive contract between the operation facade and concrete storage backends. A backend implements
// the single-item primitives of Backend; everything else (batching, events, gating, key validation) is the
// facade's job. "Not found" and "write rejected" are soft failures signalled through boolean returns; a
// backend error return is reserved for real failures (I/O, protocol, corruption) and travels through the
// exception stage of the event envelope.

package adapter

import (
	"time"

	"github.com/fezfez/stash/pkg/utils"
)

// Item is an ordered key/value argument of the batch write operations. Batch inputs are slices, not maps,
// because the contract guarantees items are attempted in caller-supplied order.
type Item = utils.Pair[string, any]

// Delta is an ordered key/delta argument of the batch increment and decrement operations.
type Delta = utils.Pair[string, int64]

// Metadata describes a stored item. Backends fill what they know; times may be zero when untracked.
type Metadata struct {
	CreatedAt  time.Time // When the item was first stored.
	ModifiedAt time.Time // Last successful write or touch.
	ExpiresAt  time.Time // Zero when the item doesn't expire.
}

// Backend is the set of single-item primitives every concrete storage backend must implement.
// Implementations must be safe for concurrent use; they must never return an error for a plain miss.
type Backend interface {
	// GetItem returns the stored value and whether the key was found.
	GetItem(key string) (any, bool, error)
	// HasItem reports whether the key exists and isn't expired.
	HasItem(key string) (bool, error)
	// Metadata returns the item's metadata, found=false on miss.
	Metadata(key string) (Metadata, bool, error)
	// SetItem stores the value unconditionally. Returns false when the backend rejected the write.
	SetItem(key string, value any) (bool, error)
	// AddItem stores the value only when the key is absent; returns false (and writes nothing) otherwise.
	AddItem(key string, value any) (bool, error)
	// ReplaceItem stores the value only when the key exists; returns false (and writes nothing) otherwise.
	ReplaceItem(key string, value any) (bool, error)
	// RemoveItem deletes the key. Returns false when it wasn't there.
	RemoveItem(key string) (bool, error)
	// IncrementItem adds delta to a numeric item and returns the new value, ok=false on miss.
	IncrementItem(key string, delta int64) (int64, bool, error)
	// DecrementItem subtracts delta from a numeric item and returns the new value, ok=false on miss.
	DecrementItem(key string, delta int64) (int64, bool, error)
	// TouchItem resets the item's TTL. Returns false on miss or when the backend's TTL is static.
	TouchItem(key string) (bool, error)
	// CheckAndSetItem writes the value only when the currently stored value equals token.
	CheckAndSetItem(token any, key string, value any) (bool, error)
	// Capabilities returns the backend's ability descriptor.
	Capabilities() Capabilities
}

// The facade probes for the following side interfaces with type assertions; backends implement the ones
// they have a native batch primitive for, and the facade derives the rest item by item.

// BulkGetter is implemented by backends with a native multi-get.
type BulkGetter interface {
	// GetItems returns the found subset of keys. Missing keys are simply absent from the map.
	GetItems(keys []string) (map[string]any, error)
}

// BulkHaser is implemented by backends with a native multi-exists.
type BulkHaser interface {
	// HasItems returns the keys that exist, preserving input order.
	HasItems(keys []string) ([]string, error)
}

// BulkMetadataReader is implemented by backends with a native multi-metadata read.
type BulkMetadataReader interface {
	Metadatas(keys []string) (map[string]Metadata, error)
}

// BulkSetter is implemented by backends with a native multi-set.
type BulkSetter interface {
	// SetItems stores all pairs in order and returns the keys that failed to write.
	SetItems(pairs []Item) ([]string, error)
}

// BulkAdder is implemented by backends with a native existence-gated multi-add.
type BulkAdder interface {
	AddItems(pairs []Item) ([]string, error)
}

// BulkReplacer is implemented by backends with a native existence-gated multi-replace.
type BulkReplacer interface {
	ReplaceItems(pairs []Item) ([]string, error)
}

// BulkRemover is implemented by backends with a native multi-delete.
type BulkRemover interface {
	// RemoveItems deletes the keys and returns those that weren't there.
	RemoveItems(keys []string) ([]string, error)
}

// BulkIncrementer is implemented by backends with a native multi-increment.
type BulkIncrementer interface {
	// IncrementItems applies the deltas in order and returns key->newValue for the keys that existed.
	IncrementItems(deltas []Delta) (map[string]int64, error)
}

// BulkDecrementer is implemented by backends with a native multi-decrement.
type BulkDecrementer interface {
	DecrementItems(deltas []Delta) (map[string]int64, error)
}

// BulkToucher is implemented by backends with a native multi-touch.
type BulkToucher interface {
	// TouchItems resets TTLs and returns the keys that failed.
	TouchItems(keys []string) ([]string, error)
}

// Flusher is the capability-gated wipe-everything interface consumed by the facade's Flush and by external
// cache-pool decorators.
type Flusher interface {
	Flush() error
}

// KeyLister enumerates the live keys of a backend. Optional; the RESP port's KEYS command needs it.
type KeyLister interface {
	Keys() ([]string, error)
}
