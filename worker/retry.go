package worker

import "context"

// RetryDecision tells the worker how to settle a failed message.
// The zero value acks it.
type RetryDecision struct {
	Retry bool
	Nack  bool
}

// RetryPolicy decides what happens to a message whose processing failed.
// evt is nil when the message could not be decoded.
type RetryPolicy interface {
	OnError(ctx context.Context, evt *Event, err error) RetryDecision
}

// NoRetry acks every failed message, so nothing is redelivered.
type NoRetry struct{}

func (NoRetry) OnError(ctx context.Context, evt *Event, err error) RetryDecision {
	return RetryDecision{}
}

// DropInvalid acks messages that cannot be decoded and nacks handler
// failures so the broker redelivers them. It is the default policy.
//
// A payload that failed to decode fails the same way on every delivery, and
// brokers such as gochannel redeliver a nacked message immediately.
type DropInvalid struct{}

func (DropInvalid) OnError(ctx context.Context, evt *Event, err error) RetryDecision {
	if evt == nil {
		return RetryDecision{}
	}
	return RetryDecision{Retry: true, Nack: true}
}
