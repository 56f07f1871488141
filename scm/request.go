package scm

import (
	"encoding/json"
	"fmt"
)

const (
	// ActionAdd signals branch creation.
	ActionAdd = "ADD"
	// ActionDelete signals branch deletion.
	ActionDelete = "DELETE"
)

// Request holds the values of a single SCM branch notification.
// A Request is never modified after it is built.
type Request struct {
	scm    string
	branch string
	action string
}

// NewRequest builds a Request from already validated values.
func NewRequest(scm, branch, action string) Request {
	return Request{scm: scm, branch: branch, action: action}
}

// SCM returns the SCM system identifier, for example "git".
func (r Request) SCM() string { return r.scm }

// Branch returns the branch name exactly as it was sent.
func (r Request) Branch() string { return r.branch }

// Action returns the raw action code.
func (r Request) Action() string { return r.action }

// IsCreate reports whether the request announces a new branch.
func (r Request) IsCreate() bool { return r.action == ActionAdd }

// IsDelete reports whether the request announces a deleted branch.
func (r Request) IsDelete() bool { return r.action == ActionDelete }

func (r Request) String() string {
	return fmt.Sprintf("scm=%s branch=%s action=%s", r.scm, r.branch, r.action)
}

type wireRequest struct {
	SCM    string `json:"scm"`
	Branch string `json:"branch"`
	Action string `json:"action"`
}

// MarshalJSON renders the request in the same shape Parse accepts.
func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRequest{SCM: r.scm, Branch: r.branch, Action: r.action})
}
