package internal

import (
	"encoding/json"

	"branchhooks/scm"
)

// Event is a validated branch notification on its way to the broker.
type Event struct {
	Request   scm.Request
	RequestID string
	// RawPayload is the body exactly as received. It is forwarded when set so
	// consumers see keys the receiver ignores.
	RawPayload []byte
}

// Payload returns the message body to publish.
func (e Event) Payload() ([]byte, error) {
	if len(e.RawPayload) > 0 {
		return e.RawPayload, nil
	}
	return json.Marshal(e.Request)
}

// ActionClass buckets the event for metrics and logging.
func (e Event) ActionClass() string {
	switch {
	case e.Request.IsCreate():
		return "create"
	case e.Request.IsDelete():
		return "delete"
	default:
		return "other"
	}
}
