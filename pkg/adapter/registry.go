// The interceptor registry keeps an ordered set of interceptors per adapter and dispatches the pre / post /
// exception envelopes to the handlers they registered. Handler sets are mutated only by AddInterceptor /
// RemoveInterceptor; dispatch iterates over a snapshot taken under a read lock, so a concurrent add or
// remove never exposes a partially-updated handler set to a running operation.

package adapter

import (
	"sync"
)

// PreFunc runs before the primitive. It may mutate the event params in place or stop propagation with a
// final result (see Event.StopPropagation).
type PreFunc func(*Event)

// PostFunc runs after the primitive (or after a short-circuited pre chain). It may replace the result.
type PostFunc func(*PostEvent)

// ExceptionFunc runs when the primitive failed. It may recover the failure (see ExceptionEvent.SetThrow).
type ExceptionFunc func(*ExceptionEvent)

// Interceptor is attached to an adapter and registers its handlers through the Binder it is handed.
// Attaching the same interceptor instance twice is a no-op: the first registration's handlers stay, no
// duplicates are added.
type Interceptor interface {
	// Attach registers this interceptor's handlers. It is called exactly once per adapter the
	// interceptor is added to.
	Attach(b *Binder)
}

// Binder collects hook registrations for a single interceptor so the registry can later detach them as a
// unit. The op argument is the operation name (e.g. "getItem") or HookAll to subscribe to every operation.
type Binder struct {
	reg   *registry
	owner Interceptor
}

// HookAll subscribes a handler to the given stage of every operation.
const HookAll = "*"

// Pre registers a handler for "<op>.pre".
func (b *Binder) Pre(op string, fn PreFunc) {
	b.reg.pre[op] = append(b.reg.pre[op], preBinding{owner: b.owner, fn: fn})
}

// Post registers a handler for "<op>.post".
func (b *Binder) Post(op string, fn PostFunc) {
	b.reg.post[op] = append(b.reg.post[op], postBinding{owner: b.owner, fn: fn})
}

// Exception registers a handler for "<op>.exception".
func (b *Binder) Exception(op string, fn ExceptionFunc) {
	b.reg.exception[op] = append(b.reg.exception[op], exceptionBinding{owner: b.owner, fn: fn})
}

type preBinding struct {
	owner Interceptor
	fn    PreFunc
}

type postBinding struct {
	owner Interceptor
	fn    PostFunc
}

type exceptionBinding struct {
	owner Interceptor
	fn    ExceptionFunc
}

// registry is the per-adapter interceptor bookkeeping. All maps are keyed by operation name; HookAll
// handlers run after the op-specific ones, both in registration order.
type registry struct {
	mux          sync.RWMutex
	interceptors []Interceptor
	pre          map[string][]preBinding
	post         map[string][]postBinding
	exception    map[string][]exceptionBinding
}

func newRegistry() *registry {
	return &registry{
		pre:       make(map[string][]preBinding),
		post:      make(map[string][]postBinding),
		exception: make(map[string][]exceptionBinding),
	}
}

// add attaches an interceptor. Returns false when the instance is already attached; registration is
// idempotent per (adapter, interceptor) identity pair.
func (r *registry) add(interceptor Interceptor, binder *Binder) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	for _, attached := range r.interceptors {
		if attached == interceptor {
			return false
		}
	}
	r.interceptors = append(r.interceptors, interceptor)
	// Binder writes go straight into the maps; we're still under the write lock.
	interceptor.Attach(binder)
	return true
}

// remove detaches an interceptor and every handler it registered. Returns false when it wasn't attached.
func (r *registry) remove(interceptor Interceptor) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	found := false
	for i, attached := range r.interceptors {
		if attached == interceptor {
			r.interceptors = append(r.interceptors[:i], r.interceptors[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	for op, bindings := range r.pre {
		r.pre[op] = deleteOwned(bindings, interceptor, func(b preBinding) Interceptor { return b.owner })
	}
	for op, bindings := range r.post {
		r.post[op] = deleteOwned(bindings, interceptor, func(b postBinding) Interceptor { return b.owner })
	}
	for op, bindings := range r.exception {
		r.exception[op] = deleteOwned(bindings, interceptor,
			func(b exceptionBinding) Interceptor { return b.owner })
	}
	return true
}

// deleteOwned filters the bindings registered by the given owner out of a fresh slice, leaving slices held
// by in-flight dispatch snapshots untouched.
func deleteOwned[B any](bindings []B, owner Interceptor, ownerOf func(B) Interceptor) []B {
	kept := make([]B, 0, len(bindings))
	for _, binding := range bindings {
		if ownerOf(binding) != owner {
			kept = append(kept, binding)
		}
	}
	return kept
}

// has reports whether the interceptor instance is attached.
func (r *registry) has(interceptor Interceptor) bool {
	r.mux.RLock()
	defer r.mux.RUnlock()
	for _, attached := range r.interceptors {
		if attached == interceptor {
			return true
		}
	}
	return false
}

// list returns the attached interceptors in attachment order.
func (r *registry) list() []Interceptor {
	r.mux.RLock()
	defer r.mux.RUnlock()
	listed := make([]Interceptor, len(r.interceptors))
	copy(listed, r.interceptors)
	return listed
}

// snapshotPre returns the pre handlers for an op (op-specific first, then HookAll) as a private slice.
func (r *registry) snapshotPre(op string) []preBinding {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return append(append([]preBinding(nil), r.pre[op]...), r.pre[HookAll]...)
}

func (r *registry) snapshotPost(op string) []postBinding {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return append(append([]postBinding(nil), r.post[op]...), r.post[HookAll]...)
}

func (r *registry) snapshotException(op string) []exceptionBinding {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return append(append([]exceptionBinding(nil), r.exception[op]...), r.exception[HookAll]...)
}

// triggerPre fires "<op>.pre". When an interceptor stopped propagation it returns its value and true; the
// facade must then skip the primitive and go straight to the post stage.
func (a *Adapter) triggerPre(op string, params *Params) (any, bool /*shortCircuit*/) {
	event := &Event{name: op + ".pre", adapter: a, params: params}
	for _, binding := range a.registry.snapshotPre(op) {
		binding.fn(event)
		if event.stopped {
			return event.result, true
		}
	}
	return nil, false
}

// triggerPost fires "<op>.post" and returns the final value of the result slot. Post fires whether the
// primitive ran or a pre interceptor short-circuited; it means "operation envelope completed".
func (a *Adapter) triggerPost(op string, params *Params, result any) any {
	event := &PostEvent{Event: Event{name: op + ".post", adapter: a, params: params}, result: result}
	for _, binding := range a.registry.snapshotPost(op) {
		binding.fn(event)
		if event.stopped {
			break
		}
	}
	return event.result
}

// triggerException fires "<op>.exception". When no interceptor recovered, the original failure is returned
// for the facade to propagate; otherwise the substitute result is returned with a nil error and the post
// stage is not run again.
func (a *Adapter) triggerException(op string, params *Params, failure error) (any, error) {
	event := &ExceptionEvent{
		PostEvent: PostEvent{Event: Event{name: op + ".exception", adapter: a, params: params}},
		err:       failure,
		throw:     true,
	}
	for _, binding := range a.registry.snapshotException(op) {
		binding.fn(event)
		if event.stopped {
			break
		}
	}
	if event.throw {
		return nil, failure
	}
	return event.result, nil
}
