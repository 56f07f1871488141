package worker

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Option configures a Worker. New reports the first option that fails.
type Option func(*Worker) error

func WithSubscriber(sub message.Subscriber) Option {
	return func(w *Worker) error {
		if sub == nil {
			return errors.New("subscriber is nil")
		}
		w.subscriber = sub
		return nil
	}
}

// WithTopics adds topics to subscribe to. Empty names are skipped, but at
// least one must remain.
func WithTopics(topics ...string) Option {
	return func(w *Worker) error {
		added := 0
		for _, topic := range topics {
			if topic == "" {
				continue
			}
			w.topics = append(w.topics, topic)
			added++
		}
		if added == 0 {
			return errors.New("no topics given")
		}
		return nil
	}
}

// WithConcurrency bounds how many messages are handled at once.
func WithConcurrency(n int) Option {
	return func(w *Worker) error {
		if n <= 0 {
			return fmt.Errorf("concurrency must be positive, got %d", n)
		}
		w.concurrency = n
		return nil
	}
}

func WithCodec(c Codec) Option {
	return func(w *Worker) error {
		if c == nil {
			return errors.New("codec is nil")
		}
		w.codec = c
		return nil
	}
}

// WithMiddleware appends to the handler chain. The first middleware runs first.
func WithMiddleware(mw ...Middleware) Option {
	return func(w *Worker) error {
		for i, m := range mw {
			if m == nil {
				return fmt.Errorf("middleware %d is nil", i)
			}
		}
		w.middleware = append(w.middleware, mw...)
		return nil
	}
}

func WithRetry(policy RetryPolicy) Option {
	return func(w *Worker) error {
		if policy == nil {
			return errors.New("retry policy is nil")
		}
		w.retry = policy
		return nil
	}
}

func WithLogger(l Logger) Option {
	return func(w *Worker) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		w.logger = l
		return nil
	}
}

// WithListener adds lifecycle hooks. Listeners run in the order they were added.
func WithListener(listener Listener) Option {
	return func(w *Worker) error {
		w.listeners = append(w.listeners, listener)
		return nil
	}
}
