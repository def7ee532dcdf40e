package mq

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProducerConfig describes how to connect to a Kafka topic for publishing messages.
type ProducerConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
}

// Validate ensures the producer configuration is usable.
func (cfg ProducerConfig) Validate() error {
	if len(cfg.Brokers) == 0 {
		return errors.New("mq: at least one broker must be configured")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return errors.New("mq: topic must be provided")
	}
	return nil
}

// ConsumerConfig defines how to consume messages from Kafka.
type ConsumerConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	ClientID string
	MinBytes int
	MaxBytes int
}

// Validate ensures the consumer configuration is usable.
func (cfg ConsumerConfig) Validate() error {
	if len(cfg.Brokers) == 0 {
		return errors.New("mq: at least one broker must be configured")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return errors.New("mq: topic must be provided")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return errors.New("mq: group id must be provided")
	}
	return nil
}

func (cfg ProducerConfig) effectiveTimeout() time.Duration {
	if cfg.Timeout <= 0 {
		return 10 * time.Millisecond
	}
	return cfg.Timeout
}

func (cfg ProducerConfig) normalize() ProducerConfig {
	normalized := cfg
	normalized.Topic = strings.TrimSpace(normalized.Topic)
	normalized.ClientID = strings.TrimSpace(normalized.ClientID)
	normalized.Brokers = cleanBrokers(normalized.Brokers)
	return normalized
}

func (cfg ConsumerConfig) normalize() ConsumerConfig {
	normalized := cfg
	if normalized.MinBytes <= 0 {
		normalized.MinBytes = 1
	}
	if normalized.MaxBytes <= 0 {
		normalized.MaxBytes = 10e6
	}
	normalized.Topic = strings.TrimSpace(normalized.Topic)
	normalized.GroupID = strings.TrimSpace(normalized.GroupID)
	normalized.ClientID = strings.TrimSpace(normalized.ClientID)
	normalized.Brokers = cleanBrokers(normalized.Brokers)
	return normalized
}

func cleanBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		broker = strings.TrimSpace(broker)
		if broker != "" {
			out = append(out, broker)
		}
	}
	return out
}

// String implements fmt.Stringer.
func (cfg ProducerConfig) String() string {
	n := cfg.normalize()
	return fmt.Sprintf("ProducerConfig{brokers=%s, topic=%s, client=%s}", strings.Join(n.Brokers, ","), n.Topic, n.ClientID)
}

// String implements fmt.Stringer.
func (cfg ConsumerConfig) String() string {
	n := cfg.normalize()
	return fmt.Sprintf("ConsumerConfig{brokers=%s, topic=%s, group=%s, client=%s}", strings.Join(n.Brokers, ","), n.Topic, n.GroupID, n.ClientID)
}
