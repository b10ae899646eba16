// Package kafka publishes JSON-encoded events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Header names set on every message.
const (
	HeaderEventType   = "event-type"
	HeaderContentType = "content-type"
)

// Event is one message. Key picks the partition, Type is copied to the
// event-type header so consumers can route without decoding, and Value is
// encoded as JSON.
type Event struct {
	Key   string
	Type  string
	Value any
}

type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer returns a Producer for topic. Only the partition leader
// acknowledges writes, so a broker failure can lose a batch.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              100,
			BatchTimeout:           50 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		logger: logger.WithComponent("kafka-producer").With("topic", topic),
	}
}

// Publish writes events in a single call. When only some messages fail, the
// error says how many.
func (p *Producer) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := encode(events)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, msgs...)
	var partial kafka.WriteErrors
	switch {
	case err == nil:
		p.logger.Debug("published", "count", len(msgs))
		return nil
	case errors.As(err, &partial):
		p.logger.Warn("partial publish", "failed", partial.Count(), "count", len(msgs))
		return fmt.Errorf("publishing: %d of %d messages failed: %w", partial.Count(), len(msgs), err)
	default:
		p.logger.Error("publish failed", "count", len(msgs), "error", err)
		return fmt.Errorf("publishing: %w", err)
	}
}

// Close flushes buffered messages and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(events []Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding event %q: %w", e.Key, err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(e.Key),
			Value: value,
			Headers: []kafka.Header{
				{Key: HeaderContentType, Value: []byte("application/json")},
			},
		}
		if e.Type != "" {
			msgs[i].Headers = append(msgs[i].Headers, kafka.Header{Key: HeaderEventType, Value: []byte(e.Type)})
		}
	}
	return msgs, nil
}
