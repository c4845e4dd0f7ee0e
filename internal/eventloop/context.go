package eventloop

import "context"

type dispatcherKey struct{}

// WithDispatcher returns a context carrying d as the current owning
// dispatch context. Code that opens loop-bound resources must be handed
// such a context by the goroutine that owns d.
func WithDispatcher(ctx context.Context, d Dispatcher) context.Context {
	return context.WithValue(ctx, dispatcherKey{}, d)
}

// FromContext returns the dispatcher stored by WithDispatcher.
func FromContext(ctx context.Context) (Dispatcher, bool) {
	d, ok := ctx.Value(dispatcherKey{}).(Dispatcher)
	return d, ok && d != nil
}
