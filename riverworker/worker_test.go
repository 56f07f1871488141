package riverworker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"branchhooks/scm"
	"branchhooks/worker"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

func newJob(body string, metadata string) *river.Job[BranchArgs] {
	return &river.Job[BranchArgs]{
		JobRow: &rivertype.JobRow{
			ID:       7,
			Attempt:  1,
			Kind:     JobKind,
			Queue:    "branches",
			Metadata: []byte(metadata),
		},
		Args: BranchArgs{Raw: json.RawMessage(body)},
	}
}

func newTestWorker() *Worker {
	return NewWorker(log.New(io.Discard, "", 0))
}

func TestBranchArgsKeepRawBody(t *testing.T) {
	body := `{"scm":"git","branch":"main","action":"ADD","repo":"core"}`
	var args BranchArgs
	if err := json.Unmarshal([]byte(body), &args); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(args.Raw) != body {
		t.Fatalf("expected raw body, got %s", args.Raw)
	}
	out, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != body {
		t.Fatalf("expected body to be written back unchanged, got %s", out)
	}
	if args.Kind() != "branchhooks.event" {
		t.Fatalf("unexpected kind %q", args.Kind())
	}
}

func TestWorkDispatchesByAction(t *testing.T) {
	var got []string
	w := newTestWorker()
	w.OnCreate(func(ctx context.Context, evt *worker.Event) error {
		got = append(got, "create:"+evt.Request.Branch()+"@"+evt.Topic+"#"+evt.RequestID())
		return nil
	})
	w.OnDelete(func(ctx context.Context, evt *worker.Event) error {
		got = append(got, "delete:"+evt.Request.Branch()+"@"+evt.Topic)
		return nil
	})
	w.OnOther(func(ctx context.Context, evt *worker.Event) error {
		got = append(got, "other:"+evt.Request.Action())
		return nil
	})

	jobs := []*river.Job[BranchArgs]{
		newJob(`{"scm":"git","branch":"feature/a","action":"ADD"}`, `{"topic":"branch.created","request_id":"req-1"}`),
		newJob(`{"scm":"git","branch":"feature/a","action":"DELETE"}`, ``),
		newJob(`{"scm":"git","branch":"main","action":"UPDATE"}`, `{}`),
	}
	for _, job := range jobs {
		if err := w.Work(context.Background(), job); err != nil {
			t.Fatalf("work: %v", err)
		}
	}

	want := []string{"create:feature/a@branch.created#req-1", "delete:feature/a@branches", "other:UPDATE"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestWorkCancelsInvalidArgs(t *testing.T) {
	w := newTestWorker()
	w.OnCreate(func(ctx context.Context, evt *worker.Event) error {
		t.Fatalf("handler must not run for invalid args")
		return nil
	})

	err := w.Work(context.Background(), newJob(`{"scm":"git","action":"ADD"}`, ``))
	var perr *scm.ParseError
	if !errors.As(err, &perr) || perr.Kind != scm.MissingField || perr.Field != "branch" {
		t.Fatalf("expected cancelled missing branch job, got %v", err)
	}
}

func TestWorkReturnsHandlerErrors(t *testing.T) {
	var order []string
	w := newTestWorker()
	w.Use(func(next worker.Handler) worker.Handler {
		return func(ctx context.Context, evt *worker.Event) error {
			order = append(order, "middleware")
			return next(ctx, evt)
		}
	})
	w.OnDelete(func(ctx context.Context, evt *worker.Event) error {
		order = append(order, "handler")
		return errors.New("cleanup failed")
	})

	err := w.Work(context.Background(), newJob(`{"scm":"git","branch":"release/2.0","action":"DELETE"}`, ``))
	if err == nil || err.Error() != "cleanup failed" {
		t.Fatalf("expected handler error to be returned for retry, got %v", err)
	}
	if len(order) != 2 || order[0] != "middleware" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestWorkWithoutHandlerCompletes(t *testing.T) {
	if err := newTestWorker().Work(context.Background(), newJob(`{"scm":"git","branch":"main","action":"ADD"}`, ``)); err != nil {
		t.Fatalf("expected job without handler to complete, got %v", err)
	}
}

func TestJobMetadataKeepsStrings(t *testing.T) {
	metadata := jobMetadata([]byte(`{"topic":"branch.created","attempts":3,"request_id":"req-2"}`))
	if metadata["topic"] != "branch.created" || metadata["request_id"] != "req-2" {
		t.Fatalf("unexpected metadata %v", metadata)
	}
	if _, ok := metadata["attempts"]; ok {
		t.Fatalf("expected non-string values to be skipped")
	}
	if len(jobMetadata([]byte("not json"))) != 0 {
		t.Fatalf("expected invalid metadata to be ignored")
	}
}

func TestNewClientRequiresWorker(t *testing.T) {
	if _, err := NewClient(nil, ClientConfig{}, nil); err == nil {
		t.Fatalf("expected error without worker")
	}
}
