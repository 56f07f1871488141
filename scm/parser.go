// Package scm parses branch notifications sent by SCM systems.
//
// The request body must be a JSON object with three string entries:
//
//	scm    the SCM type, for example "git"
//	branch the branch name, for example "feature/1337-coolfeature"
//	action "ADD", "DELETE" or any other code, e.g. "UPDATE"
//
// ADD signals branch creation and DELETE signals branch deletion. Other
// actions are accepted and kept as-is.
package scm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"
)

// Kind classifies a ParseError.
type Kind int

const (
	// MalformedBody means the body could not be read or is not a single JSON object.
	MalformedBody Kind = iota + 1
	// MissingField means a required key is absent.
	MissingField
	// InvalidFieldType means a required key holds a non-string value.
	InvalidFieldType
)

func (k Kind) String() string {
	switch k {
	case MalformedBody:
		return "malformed_body"
	case MissingField:
		return "missing_field"
	case InvalidFieldType:
		return "invalid_field_type"
	default:
		return "unknown"
	}
}

// ParseError is returned for every request body Parse rejects.
type ParseError struct {
	Kind Kind
	// Field names the offending key for MissingField and InvalidFieldType.
	Field string
	// Err is the underlying decode or read failure, if any.
	Err error
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("JSON request body does not contain key '%s'", e.Field)
	case InvalidFieldType:
		return fmt.Sprintf("JSON request body key '%s' is not a string", e.Field)
	default:
		return "Invalid JSON request body"
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// requiredKeys are checked in this order; the first failure is reported.
var requiredKeys = [...]string{"scm", "branch", "action"}

// Parse reads a JSON request body and closes it, whatever the outcome.
func Parse(body io.ReadCloser) (Request, error) {
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return Request{}, &ParseError{Kind: MalformedBody, Err: err}
	}
	return ParseBytes(data)
}

// ParseBytes validates an in-memory request body.
func ParseBytes(data []byte) (Request, error) {
	object, err := decodeObject(data)
	if err != nil {
		return Request{}, &ParseError{Kind: MalformedBody, Err: err}
	}

	var values [len(requiredKeys)]string
	for i, key := range requiredKeys {
		value, err := readKey(object, key)
		if err != nil {
			return Request{}, err
		}
		values[i] = value
	}
	return NewRequest(values[0], values[1], values[2]), nil
}

func decodeObject(data []byte) (map[string]interface{}, error) {
	// encoding/json would replace invalid bytes with U+FFFD, so the record
	// would no longer match the body that was sent.
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("body is not valid UTF-8")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	var object map[string]interface{}
	if err := dec.Decode(&object); err != nil {
		return nil, err
	}
	// A literal null decodes into a nil map without error.
	if object == nil {
		return nil, fmt.Errorf("top-level value is not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level object")
	}
	return object, nil
}

func readKey(object map[string]interface{}, key string) (string, error) {
	raw, ok := object[key]
	if !ok {
		return "", &ParseError{Kind: MissingField, Field: key}
	}
	value, ok := raw.(string)
	if !ok {
		return "", &ParseError{Kind: InvalidFieldType, Field: key}
	}
	return value, nil
}
