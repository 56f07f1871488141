package worker

import (
	"branchhooks/scm"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Codec is an interface for decoding messages from a message broker into an Event.
type Codec interface {
	// Decode transforms a Watermill message into an Event.
	Decode(topic string, msg *message.Message) (*Event, error)
}

// DefaultCodec validates the payload with the same rules the receiver applies.
type DefaultCodec struct{}

func (DefaultCodec) Decode(topic string, msg *message.Message) (*Event, error) {
	req, err := scm.ParseBytes(msg.Payload)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(msg.Metadata))
	for key, value := range msg.Metadata {
		metadata[key] = value
	}

	return &Event{
		Request:  req,
		Topic:    topic,
		Metadata: metadata,
		Payload:  msg.Payload,
	}, nil
}
