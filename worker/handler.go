package worker

import "context"

// Handler processes a decoded branch event. A non-nil error hands the message
// to the worker's RetryPolicy.
type Handler func(ctx context.Context, evt *Event) error

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Chain composes middleware so the first one is outermost.
func Chain(mw ...Middleware) Middleware {
	return func(h Handler) Handler {
		for i := len(mw) - 1; i >= 0; i-- {
			h = mw[i](h)
		}
		return h
	}
}
