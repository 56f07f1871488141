package scm

import (
	"encoding/json"
	"testing"
)

// TestRequestClassification tests that only ADD and DELETE are classified.
func TestRequestClassification(t *testing.T) {
	cases := []struct {
		action   string
		isCreate bool
		isDelete bool
	}{
		{"ADD", true, false},
		{"DELETE", false, true},
		{"UPDATE", false, false},
		{"add", false, false},
		{"", false, false},
	}

	for _, tc := range cases {
		req := NewRequest("git", "main", tc.action)
		if req.IsCreate() != tc.isCreate || req.IsDelete() != tc.isDelete {
			t.Fatalf("action %q: got create=%v delete=%v", tc.action, req.IsCreate(), req.IsDelete())
		}
		if req.IsCreate() && req.IsDelete() {
			t.Fatalf("action %q: classified as both create and delete", tc.action)
		}
	}
}

// TestRequestMarshalJSONParses tests that a marshaled request is accepted by the parser.
func TestRequestMarshalJSONParses(t *testing.T) {
	req := NewRequest("git", "feature/1337-coolfeature", "ADD")
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"scm":"git","branch":"feature/1337-coolfeature","action":"ADD"}` {
		t.Fatalf("unexpected json: %s", data)
	}

	parsed, err := ParseBytes(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != req {
		t.Fatalf("expected %s, got %s", req, parsed)
	}
}
