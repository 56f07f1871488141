package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher sends branch events to the configured brokers.
type Publisher interface {
	// Publish sends event to every configured driver.
	Publish(ctx context.Context, topic string, event Event) error
	// PublishForDrivers sends event to the named drivers only. An empty list
	// means every configured driver.
	PublishForDrivers(ctx context.Context, topic string, event Event, drivers []string) error
	Close() error
}

// PublisherFactory connects a Watermill publisher for one driver. The
// returned release func, if any, runs after the publisher is closed.
type PublisherFactory func(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error)

var publisherFactories = map[string]PublisherFactory{
	"gochannel":  newGoChannelPublisher,
	"http":       newHTTPPublisher,
	"kafka":      newKafkaPublisher,
	"nats":       newNATSPublisher,
	"amqp":       newAMQPPublisher,
	"sql":        newSQLPublisher,
	"riverqueue": newRiverQueuePublisher,
}

var (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

// RegisterPublisherDriver adds or replaces the factory for a driver name.
func RegisterPublisherDriver(name string, factory PublisherFactory) {
	if name == "" || factory == nil {
		return
	}
	publisherFactories[normalizeDriver(name)] = factory
}

// NewPublisher connects every driver in cfg.Drivers, or cfg.Driver when the
// list is empty. Drivers that cannot connect are logged and skipped; an error
// is returned only when none connect.
func NewPublisher(cfg WatermillConfig) (Publisher, error) {
	logger := watermill.NewStdLoggerWithOut(os.Stdout, false, false)

	names := cfg.Drivers
	if len(names) == 0 && cfg.Driver != "" {
		names = []string{cfg.Driver}
	}
	if len(names) == 0 {
		names = []string{"gochannel"}
	}

	f := &fanout{sinks: make(map[string]sink, len(names))}
	for _, name := range names {
		driver := normalizeDriver(name)
		if _, ok := f.sinks[driver]; ok {
			continue
		}
		s, err := connectWithRetry(cfg, driver, logger)
		if err != nil {
			logger.Error("publisher init failed, skipping driver", err, watermill.LogFields{"driver": driver})
			continue
		}
		f.sinks[driver] = s
		f.order = append(f.order, driver)
	}
	if len(f.sinks) == 0 {
		return nil, errors.New("no publishers available")
	}
	return f, nil
}

// NewMessage wraps event in a Watermill message. The scm, branch and action
// metadata let subscribers route without decoding the payload.
func NewMessage(event Event) (*message.Message, error) {
	payload, err := event.Payload()
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("scm", event.Request.SCM())
	msg.Metadata.Set("branch", event.Request.Branch())
	msg.Metadata.Set("action", event.Request.Action())
	if event.RequestID != "" {
		msg.Metadata.Set("request_id", event.RequestID)
	}
	return msg, nil
}

type unknownDriverError string

func (e unknownDriverError) Error() string {
	return fmt.Sprintf("unsupported watermill driver: %s", string(e))
}

func connectWithRetry(cfg WatermillConfig, driver string, logger watermill.LoggerAdapter) (sink, error) {
	factory, ok := publisherFactories[driver]
	if !ok {
		return sink{}, unknownDriverError(driver)
	}
	var lastErr error
	for i := 0; i < connectAttempts; i++ {
		pub, release, err := factory(cfg, logger)
		if err == nil {
			return sink{pub: pub, release: release}, nil
		}
		lastErr = err
		if i < connectAttempts-1 {
			time.Sleep(connectDelay)
		}
	}
	return sink{}, fmt.Errorf("%s: %w", driver, lastErr)
}

func normalizeDriver(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type sink struct {
	pub     message.Publisher
	release func() error
}

func (s sink) close() error {
	err := s.pub.Close()
	if s.release != nil {
		err = errors.Join(err, s.release())
	}
	return err
}

// fanout delivers each event to a set of connected drivers.
type fanout struct {
	sinks map[string]sink
	order []string
}

func (f *fanout) Publish(ctx context.Context, topic string, event Event) error {
	return f.PublishForDrivers(ctx, topic, event, nil)
}

// PublishForDrivers gives each driver its own copy of the message. Every
// target is attempted and the failures are joined.
func (f *fanout) PublishForDrivers(ctx context.Context, topic string, event Event, drivers []string) error {
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}

	targets := f.order
	if len(drivers) > 0 {
		targets = drivers
	}

	var errs error
	for _, name := range targets {
		driver := normalizeDriver(name)
		s, ok := f.sinks[driver]
		if !ok {
			IncPublishError(driver)
			errs = errors.Join(errs, fmt.Errorf("unknown driver %s", name))
			continue
		}
		out := msg.Copy()
		out.SetContext(ctx)
		if err := s.pub.Publish(topic, out); err != nil {
			IncPublishError(driver)
			errs = errors.Join(errs, fmt.Errorf("%s: %w", driver, err))
		}
	}
	return errs
}

func (f *fanout) Close() error {
	var errs error
	for _, driver := range f.order {
		errs = errors.Join(errs, f.sinks[driver].close())
	}
	return errs
}
