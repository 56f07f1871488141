package worker

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// MiddlewareFromWatermill runs a Watermill handler middleware, such as
// middleware.Recoverer or middleware.Timeout, around a Handler.
//
// The middleware sees a message built from the event's payload and metadata.
// Metadata it sets is copied back onto the event, and a context it attaches
// to the message is the one the handler receives.
func MiddlewareFromWatermill(m message.HandlerMiddleware) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, evt *Event) error {
			msg := message.NewMessage(watermill.NewUUID(), evt.Payload)
			for key, value := range evt.Metadata {
				msg.Metadata.Set(key, value)
			}
			msg.SetContext(ctx)

			wrapped := m(func(msg *message.Message) ([]*message.Message, error) {
				if len(msg.Metadata) > 0 && evt.Metadata == nil {
					evt.Metadata = make(map[string]string, len(msg.Metadata))
				}
				for key, value := range msg.Metadata {
					evt.Metadata[key] = value
				}
				return nil, next(msg.Context(), evt)
			})
			_, err := wrapped(msg)
			return err
		}
	}
}
