package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Worker subscribes to branch event topics and dispatches each event to the
// handler registered for its classification.
type Worker struct {
	subscriber  message.Subscriber
	codec       Codec
	retry       RetryPolicy
	logger      Logger
	concurrency int
	topics      []string
	middleware  []Middleware
	listeners   []Listener

	onCreate Handler
	onDelete Handler
	onOther  Handler
}

// New creates a Worker. Without options it decodes with DefaultCodec, settles
// failures with DropInvalid and handles one message at a time.
func New(opts ...Option) (*Worker, error) {
	w := &Worker{
		codec:       DefaultCodec{},
		retry:       DropInvalid{},
		logger:      defaultLogger(),
		concurrency: 1,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, fmt.Errorf("worker option: %w", err)
		}
	}
	return w, nil
}

// OnCreate registers the handler for ADD events.
func (w *Worker) OnCreate(h Handler) { w.onCreate = h }

// OnDelete registers the handler for DELETE events.
func (w *Worker) OnDelete(h Handler) { w.onDelete = h }

// OnOther registers the handler for events that are neither ADD nor DELETE.
func (w *Worker) OnOther(h Handler) { w.onOther = h }

// Run subscribes to every topic and processes messages until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if w.subscriber == nil {
		return errors.New("subscriber is required")
	}
	if len(w.topics) == 0 {
		return errors.New("at least one topic is required")
	}

	w.notifyStart(ctx)
	defer w.notifyExit(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for _, topic := range unique(w.topics) {
		msgs, err := w.subscriber.Subscribe(ctx, topic)
		if err != nil {
			w.notifyError(ctx, nil, err)
			cancel()
			wg.Wait()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		wg.Add(1)
		go func(topic string, ch <-chan *message.Message) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					sem <- struct{}{}
					wg.Add(1)
					go func(msg *message.Message) {
						defer wg.Done()
						defer func() { <-sem }()
						w.handleMessage(ctx, topic, msg)
					}(msg)
				}
			}
		}(topic, msgs)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// Close shuts down the worker's subscriber.
func (w *Worker) Close() error {
	if w.subscriber == nil {
		return nil
	}
	return w.subscriber.Close()
}

func (w *Worker) handleMessage(ctx context.Context, topic string, msg *message.Message) {
	evt, err := w.codec.Decode(topic, msg)
	if err != nil {
		w.logger.Printf("decode failed topic=%s message_id=%s: %v", topic, msg.UUID, err)
		w.notifyError(ctx, nil, err)
		w.settle(msg, w.retry.OnError(ctx, nil, err))
		return
	}

	w.notifyMessageStart(ctx, evt)
	handler := w.handlerFor(evt)
	if handler == nil {
		w.logger.Printf("no handler topic=%s %s", topic, evt.Request)
		w.notifyMessageFinish(ctx, evt, nil)
		msg.Ack()
		return
	}

	err = Chain(w.middleware...)(handler)(ctx, evt)
	w.notifyMessageFinish(ctx, evt, err)
	if err != nil {
		w.logger.Printf("handler failed request_id=%s %s: %v", evt.RequestID(), evt.Request, err)
		w.notifyError(ctx, evt, err)
		w.settle(msg, w.retry.OnError(ctx, evt, err))
		return
	}
	msg.Ack()
}

func (w *Worker) handlerFor(evt *Event) Handler {
	switch {
	case evt.Request.IsCreate():
		return w.onCreate
	case evt.Request.IsDelete():
		return w.onDelete
	default:
		return w.onOther
	}
}

func (w *Worker) settle(msg *message.Message, decision RetryDecision) {
	if decision.Retry || decision.Nack {
		msg.Nack()
		return
	}
	msg.Ack()
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
