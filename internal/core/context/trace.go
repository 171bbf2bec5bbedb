package context

import (
	"context"
)

// TraceContext holds correlation identifiers for a request.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceKey struct{}

// WithTrace stores trace identifiers in ctx.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, trace)
}

// GetTrace returns trace identifiers from ctx, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	if t, ok := ctx.Value(traceKey{}).(*TraceContext); ok {
		return t
	}
	return nil
}
