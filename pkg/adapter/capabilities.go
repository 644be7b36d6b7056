// Capabilities describe what a concrete backend can do so that callers (and external decorators) can adapt
// without probing. A Capabilities value is an immutable view: only the owning backend can build one, and
// once handed out it cannot be mutated through it.

package adapter

import (
	"maps"
	"time"
)

// ValueKind enumerates the value types a backend can store natively. Backends that marshal everything to
// bytes (e.g. through the serializer plugin) typically only support KindBytes and KindString.
type ValueKind string

const (
	KindNil     ValueKind = "nil"
	KindBool    ValueKind = "bool"
	KindInt     ValueKind = "int"
	KindFloat   ValueKind = "float"
	KindString  ValueKind = "string"
	KindBytes   ValueKind = "bytes"
	KindGeneric ValueKind = "any" // The backend stores arbitrary Go values as-is.
)

// Capabilities is the read-only descriptor of a backend's abilities. Zero value means "nothing supported";
// backends build theirs via NewCapabilities.
type Capabilities struct {
	maxKeyLength   int // Zero means unbounded.
	supportedKinds map[ValueKind]bool
	ttlPrecision   time.Duration // Smallest TTL step the backend honors.
	staticTTL      bool          // True when the backend cannot change a TTL after write (no touch).
	flushable      bool          // True when the backend implements Flusher.
}

// NewCapabilities builds an immutable capabilities descriptor. The supported kinds are copied, so the
// caller's map cannot be used to mutate the view afterwards.
func NewCapabilities(maxKeyLength int, kinds []ValueKind, ttlPrecision time.Duration,
	staticTTL, flushable bool) Capabilities {
	supported := make(map[ValueKind]bool, len(kinds))
	for _, kind := range kinds {
		supported[kind] = true
	}
	return Capabilities{
		maxKeyLength:   maxKeyLength,
		supportedKinds: supported,
		ttlPrecision:   ttlPrecision,
		staticTTL:      staticTTL,
		flushable:      flushable,
	}
}

// MaxKeyLength returns the longest key the backend accepts; zero means there is no limit.
func (c Capabilities) MaxKeyLength() int { return c.maxKeyLength }

// Supports reports whether the backend stores values of the given kind natively. Backends that advertise
// KindGeneric support everything.
func (c Capabilities) Supports(kind ValueKind) bool {
	return c.supportedKinds[kind] || c.supportedKinds[KindGeneric]
}

// SupportedKinds returns a copy of the supported kinds set.
func (c Capabilities) SupportedKinds() map[ValueKind]bool {
	return maps.Clone(c.supportedKinds)
}

// TTLPrecision returns the smallest TTL step the backend honors.
func (c Capabilities) TTLPrecision() time.Duration { return c.ttlPrecision }

// StaticTTL reports whether the TTL of an item is fixed at write time (TouchItem always soft-fails).
func (c Capabilities) StaticTTL() bool { return c.staticTTL }

// Flushable reports whether the backend supports wiping all items at once.
func (c Capabilities) Flushable() bool { return c.flushable }
