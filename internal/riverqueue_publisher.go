package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lib/pq"
)

// riverJobs inserts each message as a row of a River job table, to be worked
// by cmd/branchhooks-river-worker. The payload becomes the job args and the
// message metadata, plus the topic, becomes the job metadata.
type riverJobs struct {
	db     *sql.DB
	cfg    RiverQueueConfig
	insert string
}

func newRiverQueuePublisher(cfg WatermillConfig, _ watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	rq := cfg.RiverQueue
	if rq.DSN == "" {
		return nil, nil, fmt.Errorf("riverqueue dsn is required")
	}
	driver := rq.Driver
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, rq.DSN)
	if err != nil {
		return nil, nil, err
	}
	return &riverJobs{db: db, cfg: rq, insert: riverInsertQuery(rq.Table)}, nil, nil
}

func (r *riverJobs) Publish(topic string, msgs ...*message.Message) error {
	var errs error
	for _, msg := range msgs {
		metadata, err := json.Marshal(riverJobMetadata(topic, msg.Metadata))
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		_, err = r.db.ExecContext(
			msg.Context(),
			r.insert,
			string(msg.Payload),
			r.cfg.Kind,
			r.cfg.MaxAttempts,
			string(metadata),
			r.cfg.Priority,
			r.cfg.Queue,
			pq.Array(r.cfg.Tags),
		)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("insert job for %s: %w", msg.UUID, err))
		}
	}
	return errs
}

func (r *riverJobs) Close() error {
	return r.db.Close()
}

func riverJobMetadata(topic string, metadata message.Metadata) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for key, value := range metadata {
		out[key] = value
	}
	out["topic"] = topic
	return out
}

func riverInsertQuery(table string) string {
	table = strings.TrimSpace(table)
	if table == "" {
		table = "river_job"
	}
	return fmt.Sprintf(
		`INSERT INTO %s (args, kind, max_attempts, metadata, priority, queue, scheduled_at, tags)
VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		table,
	)
}
