package internal

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration including rules.
type Config struct {
	// Server holds server-specific configuration.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
	} `yaml:"server"`
	// Endpoint configures the SCM notification endpoint.
	Endpoint EndpointConfig `yaml:"endpoint"`
	// Watermill holds configuration for the message broker.
	Watermill   WatermillConfig `yaml:"watermill"`
	Rules       []Rule          `yaml:"rules"`
	RulesStrict bool            `yaml:"rules_strict"`
}

// EndpointConfig configures where notifications are accepted and where they go
// when no rules are configured.
type EndpointConfig struct {
	Path         string `yaml:"path"`
	DefaultTopic string `yaml:"default_topic"`
}

// WatermillConfig holds the configuration for Watermill, which handles messaging.
type WatermillConfig struct {
	Driver     string           `yaml:"driver"`
	Drivers    []string         `yaml:"drivers"`
	GoChannel  GoChannelConfig  `yaml:"gochannel"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	NATS       NATSConfig       `yaml:"nats"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	SQL        SQLConfig        `yaml:"sql"`
	HTTP       HTTPConfig       `yaml:"http"`
	RiverQueue RiverQueueConfig `yaml:"riverqueue"`
}

// GoChannelConfig holds configuration for the GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka pub/sub.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

// NATSConfig holds configuration for the NATS streaming pub/sub.
type NATSConfig struct {
	ClusterID      string `yaml:"cluster_id"`
	ClientID       string `yaml:"client_id"`
	ClientIDSuffix string `yaml:"client_id_suffix"`
	Durable        string `yaml:"durable"`
	URL            string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP pub/sub.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL pub/sub.
type SQLConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	Dialect          string `yaml:"dialect"`
	ConsumerGroup    string `yaml:"consumer_group"`
	InitializeSchema bool   `yaml:"initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP publisher.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverQueueConfig holds configuration for the RiverQueue publisher.
type RiverQueueConfig struct {
	Driver      string   `yaml:"driver"`
	DSN         string   `yaml:"dsn"`
	Table       string   `yaml:"table"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

// RulesConfig is what NewRuleEngine needs from Config.
type RulesConfig struct {
	Rules  []Rule
	Strict bool
	Logger *log.Logger
}

// LoadConfig reads a YAML config file. ${VAR} references are expanded before
// parsing and unknown keys are rejected. Unset values get defaults, then the
// result is validated.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	normalized, err := normalizeRules(cfg.Rules)
	if err != nil {
		return cfg, err
	}
	cfg.Rules = normalized
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// RulesConfig returns the rule settings of cfg for NewRuleEngine.
func (c Config) RulesConfig(logger *log.Logger) RulesConfig {
	return RulesConfig{Rules: c.Rules, Strict: c.RulesStrict, Logger: logger}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Endpoint.Path == "" {
		cfg.Endpoint.Path = "/scm"
	}
	if cfg.Endpoint.DefaultTopic == "" {
		cfg.Endpoint.DefaultTopic = "scm.branch"
	}
	if cfg.Watermill.Driver == "" {
		cfg.Watermill.Driver = "gochannel"
	}
	if cfg.Watermill.GoChannel.OutputChannelBuffer == 0 {
		cfg.Watermill.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Watermill.HTTP.Mode == "" {
		cfg.Watermill.HTTP.Mode = "topic_url"
	}
	if cfg.Watermill.RiverQueue.Table == "" {
		cfg.Watermill.RiverQueue.Table = "river_job"
	}
	if cfg.Watermill.RiverQueue.Queue == "" {
		cfg.Watermill.RiverQueue.Queue = "default"
	}
	if cfg.Watermill.RiverQueue.Kind == "" {
		cfg.Watermill.RiverQueue.Kind = "branchhooks.event"
	}
	if cfg.Watermill.RiverQueue.MaxAttempts == 0 {
		cfg.Watermill.RiverQueue.MaxAttempts = 25
	}
	if cfg.Watermill.RiverQueue.Priority == 0 {
		cfg.Watermill.RiverQueue.Priority = 1
	}
}

func (c Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("server rate limits must not be negative")
	}
	if !strings.HasPrefix(c.Endpoint.Path, "/") {
		return fmt.Errorf("endpoint.path %q must start with /", c.Endpoint.Path)
	}
	if c.Server.MetricsEnabled {
		if !strings.HasPrefix(c.Server.MetricsPath, "/") {
			return fmt.Errorf("server.metrics_path %q must start with /", c.Server.MetricsPath)
		}
		if c.Server.MetricsPath == c.Endpoint.Path {
			return fmt.Errorf("server.metrics_path and endpoint.path are both %s", c.Endpoint.Path)
		}
	}
	if c.Watermill.RiverQueue.MaxAttempts < 1 {
		return fmt.Errorf("watermill.riverqueue.max_attempts must be at least 1")
	}
	if p := c.Watermill.RiverQueue.Priority; p < 1 || p > 4 {
		return fmt.Errorf("watermill.riverqueue.priority %d must be between 1 and 4", p)
	}
	return nil
}

func normalizeRules(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		rule.When = strings.TrimSpace(rule.When)
		rule.Emit = strings.TrimSpace(rule.Emit)
		if rule.When == "" || rule.Emit == "" {
			return nil, fmt.Errorf("rule %d is missing when or emit", i)
		}
		if len(rule.Drivers) > 0 {
			drivers := make([]string, 0, len(rule.Drivers))
			for _, driver := range rule.Drivers {
				trimmed := strings.TrimSpace(driver)
				if trimmed != "" {
					drivers = append(drivers, trimmed)
				}
			}
			rule.Drivers = drivers
		}
		out = append(out, rule)
	}
	return out, nil
}
