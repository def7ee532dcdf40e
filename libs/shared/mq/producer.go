package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Producer wraps a Kafka writer.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer constructs a Kafka producer using the provided configuration.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	normalized := cfg.normalize()
	if err := normalized.Validate(); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(normalized.Brokers...),
		Topic:                  normalized.Topic,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           normalized.effectiveTimeout(),
		BatchSize:              1,
	}
	if normalized.ClientID != "" {
		writer.Transport = &kafka.Transport{ClientID: normalized.ClientID}
	}

	slog.Info("mq: initialized producer", "config", normalized.String())
	return &Producer{writer: writer, topic: normalized.Topic}, nil
}

// Publish sends a message to Kafka.
func (p *Producer) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("mq: producer not configured")
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}
	for headerKey, headerValue := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: headerKey, Value: []byte(headerValue)})
	}

	return p.writer.WriteMessages(ctx, msg)
}

// PublishJSON marshals payload and publishes it under key.
func (p *Producer) PublishJSON(ctx context.Context, key string, payload any, headers map[string]string) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mq: marshal payload: %w", err)
	}
	return p.Publish(ctx, key, value, headers)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
