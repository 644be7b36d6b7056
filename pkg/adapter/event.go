// Every public adapter operation is wrapped in an event envelope: a pre event before the primitive runs,
// then either a post event (carrying the result) or an exception event (carrying the failure). Events are
// transient, one instance per invocation, and share a single mutable Params with the primitive call so that
// interceptors can rewrite arguments in place.

package adapter

import (
	"github.com/fezfez/stash/pkg/utils"
)

// Params is an insertion-ordered mapping of named operation arguments. It is passed by pointer through the
// whole dispatch chain: a mutation made by one interceptor is observed by later interceptors and by the
// primitive itself.
type Params struct {
	entries []utils.Pair[string, any]
	index   map[string]int
}

// NewParams builds a Params from the given pairs, preserving their order.
func NewParams(pairs ...utils.Pair[string, any]) *Params {
	params := &Params{entries: pairs, index: make(map[string]int, len(pairs))}
	for i, pair := range pairs {
		params.index[pair.Key] = i
	}
	return params
}

// Param is a convenience constructor for a named argument.
func Param(name string, value any) utils.Pair[string, any] {
	return utils.Pair[string, any]{Key: name, Value: value}
}

// Set replaces the value of a named argument, or appends it when absent.
func (p *Params) Set(name string, value any) {
	if i, exists := p.index[name]; exists {
		p.entries[i].Value = value
		return
	}
	p.index[name] = len(p.entries)
	p.entries = append(p.entries, utils.Pair[string, any]{Key: name, Value: value})
}

// Get returns the value of a named argument and whether it is present.
func (p *Params) Get(name string) (any, bool) {
	i, exists := p.index[name]
	if !exists {
		return nil, false
	}
	return p.entries[i].Value, true
}

// String returns the named argument as a string, or "" when absent or of another type.
func (p *Params) String(name string) string {
	value, _ := p.Get(name)
	s, _ := value.(string)
	return s
}

// Strings returns the named argument as a string slice, or nil when absent or of another type.
func (p *Params) Strings(name string) []string {
	value, _ := p.Get(name)
	s, _ := value.([]string)
	return s
}

// Items returns the named argument as an ordered item slice, or nil when absent or of another type.
func (p *Params) Items(name string) []Item {
	value, _ := p.Get(name)
	items, _ := value.([]Item)
	return items
}

// Deltas returns the named argument as an ordered delta slice, or nil when absent or of another type.
func (p *Params) Deltas(name string) []Delta {
	value, _ := p.Get(name)
	deltas, _ := value.([]Delta)
	return deltas
}

// Int64 returns the named argument as an int64, or 0 when absent or of another type.
func (p *Params) Int64(name string) int64 {
	value, _ := p.Get(name)
	n, _ := value.(int64)
	return n
}

// Names returns the argument names in insertion order.
func (p *Params) Names() []string {
	names := make([]string, len(p.entries))
	for i, pair := range p.entries {
		names[i] = pair.Key
	}
	return names
}

// Event is the envelope handed to pre interceptors. The adapter identity and hook name are fixed; the
// params are shared and mutable. A pre interceptor may stop propagation with a final result, in which case
// the primitive is never invoked and the supplied value becomes the operation result.
type Event struct {
	name    string
	adapter *Adapter
	params  *Params
	stopped bool
	result  any // Short-circuit value; only meaningful when stopped.
}

// Name returns the full hook name, e.g. "getItem.pre".
func (e *Event) Name() string { return e.name }

// Adapter returns the adapter this event fired on.
func (e *Event) Adapter() *Adapter { return e.adapter }

// Params returns the shared mutable argument set of the running operation.
func (e *Event) Params() *Params { return e.params }

// StopPropagation halts the dispatch chain. On a pre event the given value becomes the operation's result
// and the primitive is skipped; a post event for the operation still fires.
func (e *Event) StopPropagation(result any) {
	e.stopped = true
	e.result = result
}

// Stopped reports whether an interceptor halted the chain.
func (e *Event) Stopped() bool { return e.stopped }

// PostEvent is the envelope handed to post interceptors. The result slot is mutable: the value left in it
// after the last interceptor ran is what the operation returns.
type PostEvent struct {
	Event
	result any
}

// Result returns the current operation result.
func (e *PostEvent) Result() any { return e.result }

// SetResult replaces the operation result observed by later interceptors and finally by the caller.
func (e *PostEvent) SetResult(result any) { e.result = result }

// ExceptionEvent is the envelope handed to exception interceptors after a primitive failed. Throw defaults
// to true; an interceptor that recovers the failure clears it and supplies a substitute result. Post does
// not fire again for a recovered operation.
type ExceptionEvent struct {
	PostEvent
	err   error
	throw bool
}

// Err returns the failure the primitive raised.
func (e *ExceptionEvent) Err() error { return e.err }

// Throw reports whether the failure will propagate to the caller.
func (e *ExceptionEvent) Throw() bool { return e.throw }

// SetThrow toggles propagation. Clearing it turns the failure into a soft result: the caller receives the
// event's result slot instead of the error.
func (e *ExceptionEvent) SetThrow(throw bool) { e.throw = throw }
