// Options is the shared configuration handle of cache adapters. An Options value is deliberately held by
// pointer everywhere: the same handle may be attached to several adapters (and to their backends), and a
// mutation through any holder must be observed by all of them on their next operation. There is no
// copy-on-write snapshot.

package adapter

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

// DefaultNamespace is the key namespace adapters start with. It is intentionally non-empty so that two
// adapters sharing a backend don't collide unless explicitly configured to.
const DefaultNamespace = "stash"

// Options holds the adapter configuration. The zero value is not usable; construct with NewOptions.
// Setters validate eagerly and reject invalid values with ErrInvalidConfiguration; getters never fail.
//
// Options carries no synchronization contract for concurrent mutation while operations are in flight;
// callers that mutate options from multiple goroutines must serialize themselves. The internal mutex only
// keeps individual get/set calls coherent.
type Options struct {
	mux        sync.RWMutex
	writable   bool
	readable   bool
	ttl        int64 // Seconds. Zero means "no expiry".
	namespace  string
	keyPattern *regexp.Regexp // Nil when no pattern is configured.
}

// NewOptions returns an Options handle with the defaults: writable, readable, no TTL, DefaultNamespace and
// no key pattern.
func NewOptions() *Options {
	return &Options{writable: true, readable: true, namespace: DefaultNamespace}
}

// SetWritable gates all mutating operations of adapters holding this handle.
func (o *Options) SetWritable(writable bool) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.writable = writable
}

// Writable reports whether mutating operations are allowed.
func (o *Options) Writable() bool {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return o.writable
}

// SetReadable gates all reading operations of adapters holding this handle.
func (o *Options) SetReadable(readable bool) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.readable = readable
}

// Readable reports whether reading operations are allowed.
func (o *Options) Readable() bool {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return o.readable
}

// SetTTL sets the item time-to-live in seconds. Zero disables expiry. Negative values are a configuration
// error and leave the previous TTL in place.
func (o *Options) SetTTL(seconds int64) error {
	if seconds < 0 {
		return fmt.Errorf("%w: ttl must be non-negative, got %d", ErrInvalidConfiguration, seconds)
	}
	o.mux.Lock()
	defer o.mux.Unlock()
	o.ttl = seconds
	return nil
}

// TTL returns the configured time-to-live in seconds; zero means items never expire.
func (o *Options) TTL() int64 {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return o.ttl
}

// TTLDuration returns the configured TTL as a time.Duration for backends that work with deadlines.
func (o *Options) TTLDuration() time.Duration {
	return time.Duration(o.TTL()) * time.Second
}

// SetNamespace sets the logical key prefix. Any string is a valid namespace, including "0" and "";
// backends must not treat a falsy-looking namespace as unset.
func (o *Options) SetNamespace(namespace string) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.namespace = namespace
}

// Namespace returns the logical key prefix.
func (o *Options) Namespace() string {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return o.namespace
}

// SetKeyPattern configures the regular expression keys are validated against. The empty string resets
// validation (every key passes). A pattern that doesn't compile is rejected with ErrInvalidConfiguration
// and the previous pattern stays in effect.
func (o *Options) SetKeyPattern(pattern string) error {
	if pattern == "" {
		o.mux.Lock()
		defer o.mux.Unlock()
		o.keyPattern = nil
		return nil
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("%w: key pattern %q doesn't compile: %v", ErrInvalidConfiguration, pattern, err)
	}
	o.mux.Lock()
	defer o.mux.Unlock()
	o.keyPattern = compiled
	return nil
}

// KeyPattern returns the source of the configured key pattern, or the empty string when validation is off.
// It intentionally never returns a "no pattern" sentinel distinct from "".
func (o *Options) KeyPattern() string {
	o.mux.RLock()
	defer o.mux.RUnlock()
	if o.keyPattern == nil {
		return ""
	}
	return o.keyPattern.String()
}

// validKey checks a key against the configured pattern. With no pattern configured every key is valid.
func (o *Options) validKey(key string) bool {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return o.keyPattern == nil || o.keyPattern.MatchString(key)
}
