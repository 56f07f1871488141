package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"branchhooks/internal"
	"branchhooks/riverworker"
	"branchhooks/worker"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	logger := internal.NewLogger("river-worker")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	dsn := flag.String("dsn", "", "Postgres DSN (default: watermill.riverqueue.dsn)")
	maxWorkers := flag.Int("max-workers", 5, "Jobs worked at once")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	rq := config.Watermill.RiverQueue
	if *dsn != "" {
		rq.DSN = *dsn
	}
	if rq.DSN == "" {
		logger.Fatalf("riverqueue dsn is required")
	}
	if rq.Kind != riverworker.JobKind {
		logger.Fatalf("riverqueue kind %q is not worked here, expected %q", rq.Kind, riverworker.JobKind)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, rq.DSN)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer pool.Close()

	w := riverworker.NewWorker(logger)
	w.OnCreate(func(ctx context.Context, evt *worker.Event) error {
		logger.Printf("branch created scm=%s branch=%s request_id=%s", evt.Request.SCM(), evt.Request.Branch(), evt.RequestID())
		return nil
	})
	w.OnDelete(func(ctx context.Context, evt *worker.Event) error {
		logger.Printf("branch deleted scm=%s branch=%s request_id=%s", evt.Request.SCM(), evt.Request.Branch(), evt.RequestID())
		return nil
	})

	client, err := riverworker.NewClient(pool, riverworker.ClientConfig{
		Queue:      rq.Queue,
		MaxWorkers: *maxWorkers,
		Logger:     slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}, w)
	if err != nil {
		logger.Fatalf("river client: %v", err)
	}
	if err := client.Start(ctx); err != nil {
		logger.Fatalf("river start: %v", err)
	}
	logger.Printf("working queue=%s kind=%s", rq.Queue, rq.Kind)

	<-ctx.Done()
	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := client.Stop(stopCtx); err != nil {
		logger.Printf("river stop: %v", err)
	}
}
