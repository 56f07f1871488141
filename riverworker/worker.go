// Package riverworker works branch events that the riverqueue publisher
// driver inserted into a River job table.
package riverworker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"branchhooks/internal"
	"branchhooks/scm"
	"branchhooks/worker"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// Worker dispatches branch jobs to the handler registered for their
// classification. Jobs whose args fail validation are cancelled, not retried.
type Worker struct {
	river.WorkerDefaults[BranchArgs]

	logger     worker.Logger
	middleware []worker.Middleware

	onCreate worker.Handler
	onDelete worker.Handler
	onOther  worker.Handler
}

// NewWorker returns a Worker logging to logger, or to the river-worker
// component logger when nil.
func NewWorker(logger worker.Logger) *Worker {
	if logger == nil {
		logger = internal.NewLogger("river-worker")
	}
	return &Worker{logger: logger}
}

func (w *Worker) OnCreate(h worker.Handler) { w.onCreate = h }

func (w *Worker) OnDelete(h worker.Handler) { w.onDelete = h }

func (w *Worker) OnOther(h worker.Handler) { w.onOther = h }

// Use appends middleware. The first one added runs first.
func (w *Worker) Use(mw ...worker.Middleware) { w.middleware = append(w.middleware, mw...) }

func (w *Worker) Work(ctx context.Context, job *river.Job[BranchArgs]) error {
	req, err := scm.ParseBytes(job.Args.Raw)
	if err != nil {
		w.logger.Printf("cancel job=%d queue=%s: %v", job.ID, job.Queue, err)
		return river.JobCancel(err)
	}

	evt := &worker.Event{
		Request:  req,
		Topic:    job.Queue,
		Metadata: jobMetadata(job.Metadata),
		Payload:  job.Args.Raw,
	}
	if topic := evt.Metadata["topic"]; topic != "" {
		evt.Topic = topic
	}

	var h worker.Handler
	switch {
	case req.IsCreate():
		h = w.onCreate
	case req.IsDelete():
		h = w.onDelete
	default:
		h = w.onOther
	}
	if h == nil {
		w.logger.Printf("no handler job=%d %s", job.ID, req)
		return nil
	}
	if err := worker.Chain(w.middleware...)(h)(ctx, evt); err != nil {
		w.logger.Printf("job=%d attempt=%d request_id=%s %s: %v", job.ID, job.Attempt, evt.RequestID(), req, err)
		return err
	}
	return nil
}

// jobMetadata keeps the string values of a job's metadata object.
func jobMetadata(raw []byte) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 {
		return out
	}
	var values map[string]interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return out
	}
	for key, value := range values {
		if s, ok := value.(string); ok {
			out[key] = s
		}
	}
	return out
}

// ClientConfig selects the queue a Client works and how many jobs it runs at once.
type ClientConfig struct {
	Queue      string
	MaxWorkers int
	Logger     *slog.Logger
}

// NewClient builds a River client over pool that works w's jobs on one queue.
func NewClient(pool *pgxpool.Pool, cfg ClientConfig, w *Worker) (*river.Client[pgx.Tx], error) {
	if w == nil {
		return nil, errors.New("worker is required")
	}
	if cfg.Queue == "" {
		cfg.Queue = river.QueueDefault
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, w); err != nil {
		return nil, err
	}
	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Logger: cfg.Logger,
		Queues: map[string]river.QueueConfig{
			cfg.Queue: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers: workers,
	})
}
