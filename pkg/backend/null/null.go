// A blackhole storage backend. Every read misses, every write is accepted and dropped. It is used when
// caching is disabled so callers can keep an adapter wired unconditionally.

package null

import (
	"github.com/fezfez/stash/pkg/adapter"
)

// Store stores nothing. Implements the full primitive contract.
type Store struct{}

var _ adapter.Backend = (*Store)(nil)

// New returns a blackhole store.
func New() *Store {
	return &Store{}
}

// GetItem always misses.
func (*Store) GetItem(string) (any, bool, error) { return nil, false, nil }

// HasItem always reports absent.
func (*Store) HasItem(string) (bool, error) { return false, nil }

// Metadata always misses.
func (*Store) Metadata(string) (adapter.Metadata, bool, error) {
	return adapter.Metadata{}, false, nil
}

// SetItem accepts and drops the value.
func (*Store) SetItem(string, any) (bool, error) { return true, nil }

// AddItem accepts and drops the value; the key is never present, so the add always "succeeds".
func (*Store) AddItem(string, any) (bool, error) { return true, nil }

// ReplaceItem soft-fails; there is never an existing entry to replace.
func (*Store) ReplaceItem(string, any) (bool, error) { return false, nil }

// RemoveItem soft-fails; there is never an entry to remove.
func (*Store) RemoveItem(string) (bool, error) { return false, nil }

// IncrementItem soft-fails; there is never an entry to increment.
func (*Store) IncrementItem(string, int64) (int64, bool, error) { return 0, false, nil }

// DecrementItem soft-fails; there is never an entry to decrement.
func (*Store) DecrementItem(string, int64) (int64, bool, error) { return 0, false, nil }

// TouchItem soft-fails; there is never an entry to touch.
func (*Store) TouchItem(string) (bool, error) { return false, nil }

// CheckAndSetItem soft-fails; there is never a stored value to compare the token against.
func (*Store) CheckAndSetItem(any, string, any) (bool, error) { return false, nil }

// Capabilities advertises a store that accepts anything and keeps nothing.
func (*Store) Capabilities() adapter.Capabilities {
	return adapter.NewCapabilities(0, []adapter.ValueKind{adapter.KindGeneric},
		0 /*ttlPrecision*/, true /*staticTTL*/, false /*flushable*/)
}
