package abhiyaan

import "context"

type contextKey int

const ctxKeyCaller contextKey = iota

// WithCaller returns a context carrying the caller. Transport middleware
// attaches it after authentication; handlers recover it with
// CallerFromContext.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKeyCaller, c)
}

// CallerFromContext extracts the caller attached by WithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKeyCaller).(Caller)
	return c, ok
}
