// Stock interceptors for cross-cutting cache concerns. Each plugin implements adapter.Interceptor and is
// attached with Adapter.AddInterceptor; none of them requires backend cooperation.

package plugin

import (
	"log/slog"

	"github.com/fezfez/stash/pkg/adapter"
)

// ExceptionHandler recovers backend failures into soft results: getItem turns into a miss, writes report
// false, batch reads come back empty. Without it (or with Rethrow set) backend failures propagate to the
// caller as errors.
type ExceptionHandler struct {
	// Callback is invoked with every backend failure, before the recovery decision. Optional.
	Callback func(error)
	// Rethrow keeps failures propagating; the handler then only observes (logs, calls back).
	Rethrow bool
}

var _ adapter.Interceptor = (*ExceptionHandler)(nil)

// Attach subscribes to the exception stage of every operation.
func (h *ExceptionHandler) Attach(b *adapter.Binder) {
	b.Exception(adapter.HookAll, func(event *adapter.ExceptionEvent) {
		slog.Error("Cache operation failed.", "hook", event.Name(), "error", event.Err())
		if h.Callback != nil {
			h.Callback(event.Err())
		}
		if !h.Rethrow {
			// Leave the result slot empty: the caller sees the operation's zero outcome.
			event.SetThrow(false)
		}
	})
}
