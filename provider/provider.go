package provider

import "context"

// Provider is the base interface all backends implement.
type Provider interface {
	// Name returns a stable identifier used in logs and metrics.
	Name() string
	// IsAvailable reports whether the backend can serve requests right now.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider from a loosely typed config section.
type Factory[T Provider] func(cfg map[string]any) (T, error)

// RequestResponse takes one input and returns one output.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Sink accepts input with no meaningful output.
type Sink[I any] interface {
	Provider
	Send(ctx context.Context, input I) error
}

// Func adapts a plain function into an always-available RequestResponse.
func Func[I, O any](name string, fn func(ctx context.Context, input I) (O, error)) RequestResponse[I, O] {
	return &funcRR[I, O]{name: name, fn: fn}
}

type funcRR[I, O any] struct {
	name string
	fn   func(ctx context.Context, input I) (O, error)
}

func (f *funcRR[I, O]) Name() string                     { return f.name }
func (f *funcRR[I, O]) IsAvailable(context.Context) bool { return true }
func (f *funcRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return f.fn(ctx, input)
}
