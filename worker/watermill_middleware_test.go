package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"branchhooks/scm"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

func TestMiddlewareFromWatermillRecoversPanics(t *testing.T) {
	var handlerErr error
	w := newWorker(t,
		WithMiddleware(MiddlewareFromWatermill(middleware.Recoverer)),
		WithListener(Listener{
			OnError: func(ctx context.Context, evt *Event, err error) { handlerErr = err },
		}),
	)
	w.OnCreate(func(ctx context.Context, evt *Event) error {
		panic("deploy script crashed")
	})

	msg := newMessage(t, scm.NewRequest("git", "feature/x", scm.ActionAdd))
	w.handleMessage(context.Background(), "scm.branch", msg)

	var panicErr middleware.RecoveredPanicError
	if !errors.As(handlerErr, &panicErr) || panicErr.V != "deploy script crashed" {
		t.Fatalf("expected recovered panic, got %v", handlerErr)
	}
	if !isClosed(msg.Nacked()) {
		t.Fatalf("expected recovered panic to nack")
	}
}

func TestMiddlewareFromWatermillPropagatesMetadataAndContext(t *testing.T) {
	type ctxKey struct{}
	tagging := func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			if msg.Metadata.Get("branch") != "release/2.0" {
				return nil, errors.New("event metadata not visible to watermill middleware")
			}
			msg.Metadata.Set("traced", "yes")
			msg.SetContext(context.WithValue(msg.Context(), ctxKey{}, "from-middleware"))
			return h(msg)
		}
	}

	var seenMetadata, seenCtx string
	w := newWorker(t, WithMiddleware(MiddlewareFromWatermill(tagging)))
	w.OnDelete(func(ctx context.Context, evt *Event) error {
		seenMetadata = evt.Metadata["traced"]
		seenCtx, _ = ctx.Value(ctxKey{}).(string)
		return nil
	})

	msg := newMessage(t, scm.NewRequest("git", "release/2.0", scm.ActionDelete))
	w.handleMessage(context.Background(), "scm.branch", msg)
	if !isClosed(msg.Acked()) {
		t.Fatalf("expected message to be acked")
	}
	if seenMetadata != "yes" {
		t.Fatalf("expected middleware metadata on event, got %q", seenMetadata)
	}
	if seenCtx != "from-middleware" {
		t.Fatalf("expected middleware context in handler, got %q", seenCtx)
	}
}

func TestMiddlewareFromWatermillTimeout(t *testing.T) {
	w := newWorker(t, WithMiddleware(MiddlewareFromWatermill(middleware.Timeout(10*time.Millisecond))))
	w.OnCreate(func(ctx context.Context, evt *Event) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	msg := newMessage(t, scm.NewRequest("git", "feature/slow", scm.ActionAdd))
	w.handleMessage(context.Background(), "scm.branch", msg)
	if !isClosed(msg.Nacked()) {
		t.Fatalf("expected timed out handler to nack")
	}
}
