package worker

import "context"

// Listener observes a running worker. Nil hooks are skipped.
type Listener struct {
	OnStart func(ctx context.Context)
	OnExit  func(ctx context.Context)
	// OnMessageStart runs after a message decoded, before its handler.
	OnMessageStart func(ctx context.Context, evt *Event)
	// OnMessageFinish runs after the handler returned, with its error.
	OnMessageFinish func(ctx context.Context, evt *Event, err error)
	// OnError runs for decode failures (evt is nil), handler failures and
	// subscribe failures (evt is nil).
	OnError func(ctx context.Context, evt *Event, err error)
}

func (w *Worker) notifyStart(ctx context.Context) {
	for _, l := range w.listeners {
		if l.OnStart != nil {
			l.OnStart(ctx)
		}
	}
}

func (w *Worker) notifyExit(ctx context.Context) {
	for _, l := range w.listeners {
		if l.OnExit != nil {
			l.OnExit(ctx)
		}
	}
}

func (w *Worker) notifyMessageStart(ctx context.Context, evt *Event) {
	for _, l := range w.listeners {
		if l.OnMessageStart != nil {
			l.OnMessageStart(ctx, evt)
		}
	}
}

func (w *Worker) notifyMessageFinish(ctx context.Context, evt *Event, err error) {
	for _, l := range w.listeners {
		if l.OnMessageFinish != nil {
			l.OnMessageFinish(ctx, evt, err)
		}
	}
}

func (w *Worker) notifyError(ctx context.Context, evt *Event, err error) {
	for _, l := range w.listeners {
		if l.OnError != nil {
			l.OnError(ctx, evt, err)
		}
	}
}
