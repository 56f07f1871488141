package internal

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmamaqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

func newGoChannelPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            cfg.GoChannel.OutputChannelBuffer,
		Persistent:                     cfg.GoChannel.Persistent,
		BlockPublishUntilSubscriberAck: cfg.GoChannel.BlockPublishUntilSubscriberAck,
	}, logger), nil, nil
}

// newHTTPPublisher POSTs each event to a URL derived from the topic.
func newHTTPPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	switch strings.ToLower(cfg.HTTP.Mode) {
	case "topic_url":
	case "base_url":
		if cfg.HTTP.BaseURL == "" {
			return nil, nil, fmt.Errorf("http base_url is required for base_url mode")
		}
	default:
		return nil, nil, fmt.Errorf("unsupported http mode: %s", cfg.HTTP.Mode)
	}
	pub, err := wmhttp.NewPublisher(wmhttp.PublisherConfig{
		MarshalMessageFunc: func(topic string, msg *message.Message) (*http.Request, error) {
			target, err := httpTargetURL(cfg.HTTP, topic)
			if err != nil {
				return nil, err
			}
			return wmhttp.DefaultMarshalMessageFunc(target, msg)
		},
	}, logger)
	return pub, nil, err
}

// newKafkaPublisher keys messages by branch so every event for one branch
// lands on the same partition, in order.
func newKafkaPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil, fmt.Errorf("kafka brokers are required")
	}
	pub, err := wmkafka.NewPublisher(cfg.Kafka.Brokers, branchPartitioning(), nil, logger)
	return pub, nil, err
}

func branchPartitioning() wmkafka.MarshalerUnmarshaler {
	return wmkafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
		return msg.Metadata.Get("branch"), nil
	})
}

func newNATSPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
		return nil, nil, fmt.Errorf("nats cluster_id and client_id are required")
	}
	natsCfg := wmnats.StreamingPublisherConfig{
		ClusterID: cfg.NATS.ClusterID,
		ClientID:  cfg.NATS.ClientID,
		Marshaler: wmnats.GobMarshaler{},
	}
	if cfg.NATS.URL != "" {
		natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
	}
	pub, err := wmnats.NewStreamingPublisher(natsCfg, logger)
	return pub, nil, err
}

func newAMQPPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if cfg.AMQP.URL == "" {
		return nil, nil, fmt.Errorf("amqp url is required")
	}
	amqpCfg, err := AMQPConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
	if err != nil {
		return nil, nil, err
	}
	pub, err := wmamaqp.NewPublisher(amqpCfg, logger)
	return pub, nil, err
}

// newSQLPublisher owns its *sql.DB and closes it on release.
func newSQLPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
		return nil, nil, fmt.Errorf("sql driver and dsn are required")
	}
	schemaAdapter, _, err := SQLAdapters(cfg.SQL.Dialect)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	pub, err := wmsql.NewPublisher(db, wmsql.PublisherConfig{
		SchemaAdapter:        schemaAdapter,
		AutoInitializeSchema: cfg.SQL.InitializeSchema,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return pub, db.Close, nil
}

// AMQPConfigFromMode maps a configured mode onto a Watermill AMQP preset.
func AMQPConfigFromMode(url, mode string) (wmamaqp.Config, error) {
	switch strings.ToLower(mode) {
	case "", "durable_queue":
		return wmamaqp.NewDurableQueueConfig(url), nil
	case "nondurable_queue":
		return wmamaqp.NewNonDurableQueueConfig(url), nil
	case "durable_pubsub":
		return wmamaqp.NewDurablePubSubConfig(url, nil), nil
	case "nondurable_pubsub":
		return wmamaqp.NewNonDurablePubSubConfig(url, nil), nil
	default:
		return wmamaqp.Config{}, fmt.Errorf("unsupported amqp mode: %s", mode)
	}
}

// SQLAdapters returns the schema and offsets adapters for a SQL dialect.
func SQLAdapters(dialect string) (wmsql.SchemaAdapter, wmsql.OffsetsAdapter, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return wmsql.DefaultPostgreSQLSchema{}, wmsql.DefaultPostgreSQLOffsetsAdapter{}, nil
	case "mysql":
		return wmsql.DefaultMySQLSchema{}, wmsql.DefaultMySQLOffsetsAdapter{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
}

// httpTargetURL resolves where an event for topic is POSTed. In topic_url
// mode the topic is the URL; in base_url mode it is appended as a path.
func httpTargetURL(cfg HTTPConfig, topic string) (string, error) {
	switch strings.ToLower(cfg.Mode) {
	case "topic_url":
		if topic == "" {
			return "", fmt.Errorf("http topic url is empty")
		}
		return topic, nil
	case "base_url":
		if cfg.BaseURL == "" {
			return "", fmt.Errorf("http base_url is empty")
		}
		if topic == "" {
			return strings.TrimRight(cfg.BaseURL, "/"), nil
		}
		return strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(topic, "/"), nil
	default:
		return "", fmt.Errorf("unsupported http mode: %s", cfg.Mode)
	}
}
