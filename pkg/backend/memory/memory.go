// An in-memory storage backend. Keys are distributed across shards by hash so concurrent operations on
// different keys don't contend on one lock. Each shard keeps one keyspace per namespace; the namespace is
// read live from the shared options handle on every operation, so switching the namespace on the options
// immediately switches the keyspace this backend works in.
//
// Expired entries are dropped lazily on access and eagerly by a background reaper goroutine that sweeps
// the shards at a fixed interval.

package memory

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fezfez/stash/pkg/adapter"
	"github.com/fezfez/stash/pkg/utils"
)

// reapInterval is how often the background reaper sweeps for expired entries. It bounds how long an
// expired entry can linger; reads never observe one regardless.
const reapInterval = time.Second

type entry struct {
	value     any
	createdAt time.Time
	updatedAt time.Time
	expiresAt time.Time // Zero when the entry doesn't expire.
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type shard struct {
	mux sync.RWMutex
	// spaces maps namespace -> key -> entry. Namespaces are fully isolated keyspaces.
	spaces map[string]map[string]*entry
}

func (s *shard) space(namespace string, create bool) map[string]*entry {
	entries, exists := s.spaces[namespace]
	if !exists && create {
		entries = make(map[string]*entry)
		s.spaces[namespace] = entries
	}
	return entries
}

// Store is the in-memory backend. It implements the full primitive contract plus native bulk get/set,
// flushing and key listing.
type Store struct {
	options *adapter.Options
	shards  []*shard
}

var (
	_ adapter.Backend    = (*Store)(nil)
	_ adapter.BulkGetter = (*Store)(nil)
	_ adapter.BulkSetter = (*Store)(nil)
	_ adapter.Flusher    = (*Store)(nil)
	_ adapter.KeyLister  = (*Store)(nil)
)

// New creates an in-memory store with the given shard count and starts its reaper goroutine, which stops
// when ctx is cancelled. The options handle is shared with the adapter; a nil handle gets fresh defaults.
func New(ctx context.Context, options *adapter.Options, shardCount int) *Store {
	if options == nil {
		options = adapter.NewOptions()
	}
	if shardCount <= 0 {
		utils.RaiseInvariant("memory", "invalid_shard_count",
			"Invalid shard count has been given to the memory store.", "shardCount", shardCount)
		shardCount = 1
	}
	store := &Store{options: options, shards: make([]*shard, shardCount)}
	for i := range shardCount {
		store.shards[i] = &shard{spaces: make(map[string]map[string]*entry)}
	}
	go store.reaper(ctx)
	return store
}

func (s *Store) shardOf(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// expiry computes the deadline for a fresh write under the current options TTL.
func (s *Store) expiry(now time.Time) time.Time {
	if ttl := s.options.TTLDuration(); ttl > 0 {
		return now.Add(ttl)
	}
	return time.Time{}
}

// GetItem returns the live value stored under key in the current namespace.
func (s *Store) GetItem(key string) (any, bool, error) {
	shard := s.shardOf(key)
	shard.mux.RLock()
	defer shard.mux.RUnlock()

	stored, exists := shard.space(s.options.Namespace(), false)[key]
	if !exists || stored.expired(time.Now()) {
		return nil, false, nil
	}
	return stored.value, true, nil
}

// HasItem reports whether key exists and isn't expired.
func (s *Store) HasItem(key string) (bool, error) {
	_, found, err := s.GetItem(key)
	return found, err
}

// Metadata returns the timestamps tracked for key.
func (s *Store) Metadata(key string) (adapter.Metadata, bool, error) {
	shard := s.shardOf(key)
	shard.mux.RLock()
	defer shard.mux.RUnlock()

	stored, exists := shard.space(s.options.Namespace(), false)[key]
	if !exists || stored.expired(time.Now()) {
		return adapter.Metadata{}, false, nil
	}
	return adapter.Metadata{
		CreatedAt:  stored.createdAt,
		ModifiedAt: stored.updatedAt,
		ExpiresAt:  stored.expiresAt,
	}, true, nil
}

// SetItem stores value unconditionally. The creation timestamp survives overwrites of a live entry.
func (s *Store) SetItem(key string, value any) (bool, error) {
	shard := s.shardOf(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()

	now := time.Now()
	space := shard.space(s.options.Namespace(), true)
	createdAt := now
	if previous, exists := space[key]; exists && !previous.expired(now) {
		createdAt = previous.createdAt
	}
	space[key] = &entry{value: value, createdAt: createdAt, updatedAt: now, expiresAt: s.expiry(now)}
	return true, nil
}

// AddItem stores value only when key is absent (or expired).
func (s *Store) AddItem(key string, value any) (bool, error) {
	shard := s.shardOf(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()

	now := time.Now()
	space := shard.space(s.options.Namespace(), true)
	if previous, exists := space[key]; exists && !previous.expired(now) {
		return false, nil
	}
	space[key] = &entry{value: value, createdAt: now, updatedAt: now, expiresAt: s.expiry(now)}
	return true, nil
}

// ReplaceItem stores value only when a live entry already exists under key.
func (s *Store) ReplaceItem(key string, value any) (bool, error) {
	shard := s.shardOf(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()

	now := time.Now()
	space := shard.space(s.options.Namespace(), false)
	previous, exists := space[key]
	if !exists || previous.expired(now) {
		return false, nil
	}
	previous.value = value
	previous.updatedAt = now
	previous.expiresAt = s.expiry(now)
	return true, nil
}

// RemoveItem deletes key; returns false when there was no live entry.
func (s *Store) RemoveItem(key string) (bool, error) {
	shard := s.shardOf(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()

	space := shard.space(s.options.Namespace(), false)
	stored, exists := space[key]
	if !exists {
		return false, nil
	}
	delete(space, key)
	return !stored.expired(time.Now()), nil
}

// IncrementItem adds delta to the numeric entry under key. Missing keys are a soft failure; non-numeric
// values count as zero, matching loosely-typed cache backends.
func (s *Store) IncrementItem(key string, delta int64) (int64, bool, error) {
	return s.counter(key, delta)
}

// DecrementItem subtracts delta from the numeric entry under key.
func (s *Store) DecrementItem(key string, delta int64) (int64, bool, error) {
	return s.counter(key, -delta)
}

func (s *Store) counter(key string, delta int64) (int64, bool, error) {
	shard := s.shardOf(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()

	now := time.Now()
	space := shard.space(s.options.Namespace(), false)
	stored, exists := space[key]
	if !exists || stored.expired(now) {
		return 0, false, nil
	}
	newValue := toInt64(stored.value) + delta
	stored.value = newValue
	stored.updatedAt = now
	return newValue, true, nil
}

// TouchItem restarts the TTL of a live entry under the current options TTL.
func (s *Store) TouchItem(key string) (bool, error) {
	shard := s.shardOf(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()

	now := time.Now()
	stored, exists := shard.space(s.options.Namespace(), false)[key]
	if !exists || stored.expired(now) {
		return false, nil
	}
	stored.updatedAt = now
	stored.expiresAt = s.expiry(now)
	return true, nil
}

// CheckAndSetItem writes value only when the live entry's value equals token.
func (s *Store) CheckAndSetItem(token any, key string, value any) (bool, error) {
	shard := s.shardOf(key)
	shard.mux.Lock()
	defer shard.mux.Unlock()

	now := time.Now()
	stored, exists := shard.space(s.options.Namespace(), false)[key]
	if !exists || stored.expired(now) || !reflect.DeepEqual(stored.value, token) {
		return false, nil
	}
	stored.value = value
	stored.updatedAt = now
	stored.expiresAt = s.expiry(now)
	return true, nil
}

// GetItems is the native multi-get; it's a plain loop but saves the facade's per-item envelope plumbing.
func (s *Store) GetItems(keys []string) (map[string]any, error) {
	found := make(map[string]any, len(keys))
	for _, key := range keys {
		if value, hit, _ := s.GetItem(key); hit {
			found[key] = value
		}
	}
	return found, nil
}

// SetItems is the native multi-set. Memory writes can't fail, so the failure list is always empty.
func (s *Store) SetItems(pairs []adapter.Item) ([]string, error) {
	for _, pair := range pairs {
		_, _ = s.SetItem(pair.Key, pair.Value)
	}
	return []string{}, nil
}

// Keys lists the live keys of the current namespace across all shards, in no particular order.
func (s *Store) Keys() ([]string, error) {
	namespace := s.options.Namespace()
	now := time.Now()
	keys := make([]string, 0)
	for _, shard := range s.shards {
		shard.mux.RLock()
		for key, stored := range shard.space(namespace, false) {
			if !stored.expired(now) {
				keys = append(keys, key)
			}
		}
		shard.mux.RUnlock()
	}
	return keys, nil
}

// Flush drops every entry of the current namespace. Other namespaces sharing this store are untouched.
func (s *Store) Flush() error {
	namespace := s.options.Namespace()
	for _, shard := range s.shards {
		shard.mux.Lock()
		delete(shard.spaces, namespace)
		shard.mux.Unlock()
	}
	return nil
}

// Capabilities advertises what the memory store can do: any Go value, unbounded keys, touchable TTLs with
// a one-second floor, and flush support.
func (s *Store) Capabilities() adapter.Capabilities {
	return adapter.NewCapabilities(0 /*maxKeyLength*/, []adapter.ValueKind{adapter.KindGeneric},
		time.Second /*ttlPrecision*/, false /*staticTTL*/, true /*flushable*/)
}

// reaper sweeps the shards at a fixed interval and drops entries past their deadline, across all
// namespaces.
func (s *Store) reaper(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for _, shard := range s.shards {
				shard.mux.Lock()
				for _, space := range shard.spaces {
					for key, stored := range space {
						if stored.expired(now) {
							delete(space, key)
						}
					}
				}
				shard.mux.Unlock()
			}
		}
	}
}

// toInt64 coerces a stored value to an integer for the counter operations.
func toInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	default:
		return 0
	}
}
