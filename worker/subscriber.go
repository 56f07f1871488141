package worker

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"branchhooks/internal"

	"github.com/ThreeDotsLabs/watermill"
	wmamaqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

var (
	subscriberAttempts = 10
	subscriberDelay    = 2 * time.Second
)

// NewFromConfig creates a worker subscribed through the configured broker.
// The subscriber logs through the worker's Logger.
func NewFromConfig(cfg internal.WatermillConfig, opts ...Option) (*Worker, error) {
	w, err := New(opts...)
	if err != nil {
		return nil, err
	}
	sub, err := BuildSubscriber(cfg, w.logger)
	if err != nil {
		return nil, err
	}
	w.subscriber = sub
	return w, nil
}

// BuildSubscriber creates a Watermill subscriber for cfg.Driver.
// Only the first entry of cfg.Drivers is used when Driver is empty.
// A nil logger logs with the worker prefix.
func BuildSubscriber(cfg internal.WatermillConfig, l Logger) (message.Subscriber, error) {
	logger := newWatermillLogger(l)

	driver := cfg.Driver
	if driver == "" && len(cfg.Drivers) > 0 {
		driver = cfg.Drivers[0]
	}
	if driver == "" {
		driver = "gochannel"
	}
	driver = strings.ToLower(strings.TrimSpace(driver))

	var lastErr error
	for i := 0; i < subscriberAttempts; i++ {
		sub, err := buildSingleSubscriber(cfg, logger, driver)
		if err == nil {
			return sub, nil
		}
		var unsupported unsupportedDriverError
		if errors.As(err, &unsupported) {
			return nil, err
		}
		lastErr = err
		if i < subscriberAttempts-1 {
			time.Sleep(subscriberDelay)
		}
	}
	return nil, lastErr
}

type unsupportedDriverError string

func (e unsupportedDriverError) Error() string {
	return fmt.Sprintf("unsupported subscriber driver: %s", string(e))
}

func buildSingleSubscriber(cfg internal.WatermillConfig, logger watermill.LoggerAdapter, driver string) (message.Subscriber, error) {
	switch driver {
	case "gochannel":
		return gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            cfg.GoChannel.OutputChannelBuffer,
			Persistent:                     cfg.GoChannel.Persistent,
			BlockPublishUntilSubscriberAck: cfg.GoChannel.BlockPublishUntilSubscriberAck,
		}, logger), nil
	case "amqp":
		if cfg.AMQP.URL == "" {
			return nil, errors.New("amqp url is required")
		}
		amqpCfg, err := internal.AMQPConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
		if err != nil {
			return nil, err
		}
		return wmamaqp.NewSubscriber(amqpCfg, logger)
	case "nats":
		if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
			return nil, errors.New("nats cluster_id and client_id are required")
		}
		natsCfg := wmnats.StreamingSubscriberConfig{
			ClusterID:   cfg.NATS.ClusterID,
			ClientID:    cfg.NATS.ClientID + cfg.NATS.ClientIDSuffix,
			DurableName: cfg.NATS.Durable,
			Unmarshaler: wmnats.GobMarshaler{},
		}
		if cfg.NATS.URL != "" {
			natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
		}
		return wmnats.NewStreamingSubscriber(natsCfg, logger)
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, errors.New("kafka brokers are required")
		}
		return wmkafka.NewSubscriber(wmkafka.SubscriberConfig{
			Brokers:       cfg.Kafka.Brokers,
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, nil, wmkafka.DefaultMarshaler{}, logger)
	case "sql":
		if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
			return nil, errors.New("sql driver and dsn are required")
		}
		schemaAdapter, offsetsAdapter, err := internal.SQLAdapters(cfg.SQL.Dialect)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		sub, err := wmsql.NewSubscriber(db, wmsql.SubscriberConfig{
			ConsumerGroup:    cfg.SQL.ConsumerGroup,
			SchemaAdapter:    schemaAdapter,
			OffsetsAdapter:   offsetsAdapter,
			InitializeSchema: cfg.SQL.InitializeSchema,
		}, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &closingSubscriber{Subscriber: sub, closeFn: db.Close}, nil
	default:
		return nil, unsupportedDriverError(driver)
	}
}

type closingSubscriber struct {
	message.Subscriber
	closeFn func() error
}

func (c *closingSubscriber) Close() error {
	err := c.Subscriber.Close()
	if c.closeFn != nil {
		return errors.Join(err, c.closeFn())
	}
	return err
}
