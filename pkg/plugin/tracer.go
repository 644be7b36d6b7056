package plugin

import (
	"log/slog"

	"github.com/fezfez/stash/pkg/adapter"
)

// Tracer logs every operation envelope at debug level: the pre stage with the argument names, the post
// stage, and the exception stage with the failure. It never mutates arguments or results.
type Tracer struct{}

var _ adapter.Interceptor = (*Tracer)(nil)

// Attach subscribes to all three stages of every operation.
func (t *Tracer) Attach(b *adapter.Binder) {
	b.Pre(adapter.HookAll, func(event *adapter.Event) {
		slog.Debug("Cache operation starting.", "hook", event.Name(), "params", event.Params().Names())
	})
	b.Post(adapter.HookAll, func(event *adapter.PostEvent) {
		slog.Debug("Cache operation completed.", "hook", event.Name())
	})
	b.Exception(adapter.HookAll, func(event *adapter.ExceptionEvent) {
		slog.Debug("Cache operation raised.", "hook", event.Name(), "error", event.Err())
	})
}
