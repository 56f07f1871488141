package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"branchhooks/internal"
	"branchhooks/worker"

	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

func main() {
	logger := internal.NewLogger("worker")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	driver := flag.String("driver", "", "Override subscriber driver (gochannel|kafka|amqp|nats|sql)")
	topics := flag.String("topics", "", "Comma separated topics (default: endpoint default topic and rule topics)")
	concurrency := flag.Int("concurrency", 4, "Messages handled at once")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *driver != "" {
		config.Watermill.Driver = *driver
	}

	w, err := worker.NewFromConfig(
		config.Watermill,
		worker.WithTopics(subscribedTopics(config, *topics)...),
		worker.WithLogger(logger),
		worker.WithConcurrency(*concurrency),
		worker.WithMiddleware(worker.MiddlewareFromWatermill(middleware.Recoverer)),
		worker.WithListener(worker.Listener{
			OnStart: func(ctx context.Context) { logger.Printf("worker started driver=%s", config.Watermill.Driver) },
			OnExit:  func(ctx context.Context) { logger.Printf("worker stopped") },
		}),
	)
	if err != nil {
		logger.Fatalf("worker: %v", err)
	}
	defer w.Close()

	w.OnCreate(func(ctx context.Context, evt *worker.Event) error {
		logger.Printf("branch created scm=%s branch=%s request_id=%s", evt.Request.SCM(), evt.Request.Branch(), evt.RequestID())
		return nil
	})
	w.OnDelete(func(ctx context.Context, evt *worker.Event) error {
		logger.Printf("branch deleted scm=%s branch=%s request_id=%s", evt.Request.SCM(), evt.Request.Branch(), evt.RequestID())
		return nil
	})
	w.OnOther(func(ctx context.Context, evt *worker.Event) error {
		logger.Printf("ignoring action %s for branch %s", evt.Request.Action(), evt.Request.Branch())
		return nil
	})

	if err := w.Run(ctx); err != nil {
		logger.Fatalf("run: %v", err)
	}
}

func subscribedTopics(config internal.Config, flagValue string) []string {
	if flagValue != "" {
		return strings.Split(flagValue, ",")
	}
	if len(config.Rules) == 0 {
		return []string{config.Endpoint.DefaultTopic}
	}
	topics := make([]string, 0, len(config.Rules))
	for _, rule := range config.Rules {
		topics = append(topics, rule.Emit)
	}
	return topics
}
