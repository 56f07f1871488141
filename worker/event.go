package worker

import "branchhooks/scm"

// Event is a branch notification received from the broker.
type Event struct {
	// Request is the validated branch notification.
	Request scm.Request
	// Topic is the name of the topic the message was received on.
	Topic string
	// Metadata contains message-broker-specific metadata.
	Metadata map[string]string
	// Payload is the raw message body.
	Payload []byte
}

// RequestID returns the receiver's request ID, if one was attached.
func (e *Event) RequestID() string {
	return e.Metadata["request_id"]
}
