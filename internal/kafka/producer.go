package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"busticket/internal/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher is what services depend on; Producer and NoopProducer satisfy it.
type Publisher interface {
	Publish(topic string, key string, value []byte) error
	Close() error
}

type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Producer{Writer: writer, Logger: log}
}

// Publish writes a single keyed message to topic.
func (p *Producer) Publish(topic string, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s bytes=%d", key, len(value)))
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NoopProducer drops messages; used when KAFKA_ENABLED=false.
type NoopProducer struct {
	Logger *logger.Logger
}

func (n *NoopProducer) Publish(topic string, key string, value []byte) error {
	if n.Logger != nil {
		n.Logger.Debug("KAFKA", fmt.Sprintf("kafka disabled, dropping %s key=%s", topic, key))
	}
	return nil
}

func (n *NoopProducer) Close() error { return nil }

// PublishJSON marshals v and publishes it.
func PublishJSON(p Publisher, topic, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return p.Publish(topic, key, value)
}
