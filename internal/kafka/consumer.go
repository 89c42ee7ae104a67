package kafka

import (
	"context"
	"errors"
	"fmt"

	"busticket/internal/logger"

	"github.com/segmentio/kafka-go"
)

type MessageHandler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, logger: log}
}

// Start blocks until ctx is cancelled. Handler errors are logged and the
// offset is still committed so a poison message cannot stall the group.
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) {
	topic := c.reader.Config().Topic
	c.logger.LogKafka("CONSUME", topic, "consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.LogKafka("CONSUME", topic, "consumer stopped")
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message from %s: %v", topic, err))
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Handler failed for %s offset %d: %v", topic, msg.Offset, err))
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Commit failed for %s offset %d: %v", topic, msg.Offset, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
