package provider

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/resilience"
)

// Middleware wraps a RequestResponse with extra behavior.
type Middleware[I, O any] func(RequestResponse[I, O]) RequestResponse[I, O]

// Chain composes middlewares. The first one is outermost:
// Chain(a, b, c)(p) == a(b(c(p))).
func Chain[I, O any](middlewares ...Middleware[I, O]) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}

// wrapped forwards Name and IsAvailable to inner and runs exec for Execute.
type wrapped[I, O any] struct {
	inner RequestResponse[I, O]
	exec  func(ctx context.Context, input I) (O, error)
}

func (w *wrapped[I, O]) Name() string                         { return w.inner.Name() }
func (w *wrapped[I, O]) IsAvailable(ctx context.Context) bool { return w.inner.IsAvailable(ctx) }
func (w *wrapped[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return w.exec(ctx, input)
}

// WithLogging logs each call with its duration and outcome.
func WithLogging[I, O any](log *logger.Logger) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			start := time.Now()
			out, err := inner.Execute(ctx, input)
			fields := map[string]interface{}{
				"provider":           inner.Name(),
				logger.FieldDuration: time.Since(start).Milliseconds(),
			}
			if err != nil {
				fields[logger.FieldError] = err.Error()
				log.Warn("provider call failed", fields)
			} else {
				log.Debug("provider call ok", fields)
			}
			return out, err
		}}
	}
}

// WithTracing opens a span named "<prefix>.<provider>" around each call.
func WithTracing[I, O any](prefix string) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			ctx, span := observability.StartSpan(ctx, prefix+"."+inner.Name(),
				attribute.String(observability.AttrProvider, inner.Name()))
			out, err := inner.Execute(ctx, input)
			observability.EndSpan(span, err)
			return out, err
		}}
	}
}

// WithRetry retries failed calls according to cfg.
func WithRetry[I, O any](cfg resilience.RetryConfig) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			return resilience.Retry(ctx, cfg, func() (O, error) {
				return inner.Execute(ctx, input)
			})
		}}
	}
}

// WithBulkhead bounds the number of concurrent calls through b.
func WithBulkhead[I, O any](b *resilience.Bulkhead) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &wrapped[I, O]{inner: inner, exec: func(ctx context.Context, input I) (O, error) {
			var out O
			err := b.Execute(ctx, func() error {
				var err error
				out, err = inner.Execute(ctx, input)
				return err
			})
			return out, err
		}}
	}
}
