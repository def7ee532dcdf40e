package mq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message represents a Kafka message delivered to consumers.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

// Handler processes messages from a consumer.
type Handler func(context.Context, Message) error

// Consumer wraps a Kafka reader and invokes a handler for each message.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
}

// NewConsumer constructs a Kafka consumer and prepares it for message processing.
func NewConsumer(cfg ConsumerConfig, handler Handler) (*Consumer, error) {
	normalized := cfg.normalize()
	if err := normalized.Validate(); err != nil {
		return nil, err
	}

	readerCfg := kafka.ReaderConfig{
		Brokers:  normalized.Brokers,
		Topic:    normalized.Topic,
		GroupID:  normalized.GroupID,
		MinBytes: normalized.MinBytes,
		MaxBytes: normalized.MaxBytes,
	}
	if normalized.ClientID != "" {
		readerCfg.Dialer = &kafka.Dialer{ClientID: normalized.ClientID, Timeout: 10 * time.Second}
	}

	slog.Info("mq: initialized consumer", "config", normalized.String())
	return &Consumer{
		reader:  kafka.NewReader(readerCfg),
		handler: handler,
	}, nil
}

// Run consumes messages until the context is cancelled or the reader fails.
// Offsets are committed after the handler returns, whatever its result:
// delivery is at most once per message.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil || c.reader == nil {
		return nil
	}

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return err
		}

		if c.handler != nil {
			if err := c.handler(ctx, toMessage(msg)); err != nil {
				slog.Error("mq: handler error", "topic", msg.Topic, "offset", msg.Offset, "err", err)
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			slog.Warn("mq: commit failed", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		}
	}
}

// Close shuts down the reader.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func toMessage(msg kafka.Message) Message {
	payload := Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: make(map[string]string, len(msg.Headers)),
		Time:    msg.Time,
	}
	for _, header := range msg.Headers {
		payload.Headers[header.Key] = string(header.Value)
	}
	return payload
}
