package plugin

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fezfez/stash/pkg/adapter"
)

// BloomGuard is a negative cache: it tracks every key written through the adapter in a bloom filter and
// short-circuits reads for keys the filter has definitely never seen, sparing the backend a round trip.
// Bloom filters have false positives but no false negatives, so a short-circuited miss is always correct.
//
// The guard only knows about writes it observed. Attach it to adapters working on a fresh namespace (or
// one whose key population it has been warmed with); otherwise pre-existing keys would read as misses.
type BloomGuard struct {
	mux    sync.Mutex
	filter *bloom.BloomFilter
}

var _ adapter.Interceptor = (*BloomGuard)(nil)

// NewBloomGuard sizes the filter for the expected number of distinct keys and the acceptable
// false-positive rate.
func NewBloomGuard(expectedKeys uint, falsePositiveRate float64) *BloomGuard {
	return &BloomGuard{filter: bloom.NewWithEstimates(expectedKeys, falsePositiveRate)}
}

// Attach subscribes to the write pre hooks (record keys) and the read pre hooks (short-circuit misses).
func (g *BloomGuard) Attach(b *adapter.Binder) {
	// Keys are recorded before the write even runs: recording a key whose write later fails only costs a
	// false positive, which the filter tolerates, while missing a successful write would corrupt reads.
	for _, op := range []string{adapter.OpSetItem, adapter.OpAddItem, adapter.OpReplaceItem,
		adapter.OpCheckAndSetItem, adapter.OpIncrementItem, adapter.OpDecrementItem} {
		b.Pre(op, func(event *adapter.Event) {
			g.record(event.Params().String("key"))
		})
	}
	for _, op := range []string{adapter.OpSetItems, adapter.OpAddItems, adapter.OpReplaceItems} {
		b.Pre(op, func(event *adapter.Event) {
			for _, pair := range event.Params().Items("pairs") {
				g.record(pair.Key)
			}
		})
	}
	for _, op := range []string{adapter.OpIncrementItems, adapter.OpDecrementItems} {
		b.Pre(op, func(event *adapter.Event) {
			for _, delta := range event.Params().Deltas("deltas") {
				g.record(delta.Key)
			}
		})
	}
	b.Pre(adapter.OpGetItem, func(event *adapter.Event) {
		if g.neverWritten(event.Params().String("key")) {
			event.StopPropagation(nil)
		}
	})
	b.Pre(adapter.OpGetMetadata, func(event *adapter.Event) {
		if g.neverWritten(event.Params().String("key")) {
			event.StopPropagation(nil)
		}
	})
	b.Pre(adapter.OpHasItem, func(event *adapter.Event) {
		if g.neverWritten(event.Params().String("key")) {
			event.StopPropagation(false)
		}
	})
}

func (g *BloomGuard) record(key string) {
	g.mux.Lock()
	defer g.mux.Unlock()
	g.filter.AddString(key)
}

func (g *BloomGuard) neverWritten(key string) bool {
	g.mux.Lock()
	defer g.mux.Unlock()
	return !g.filter.TestString(key)
}
