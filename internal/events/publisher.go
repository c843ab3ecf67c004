// Package events publishes submission outcomes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// OutcomeEvent describes the result of one submitted line.
type OutcomeEvent struct {
	BatchID    string          `json:"batchId"`
	SessionID  string          `json:"sessionId"`
	LineID     string          `json:"lineId"`
	PackageNo  string          `json:"packageNo"`
	Carrier    string          `json:"carrier"`
	Status     string          `json:"status"`
	ErrorClass string          `json:"errorClass,omitempty"`
	Error      string          `json:"error,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Publisher publishes outcome events.
type Publisher interface {
	Publish(ctx context.Context, events ...OutcomeEvent) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per event, keyed by package number.
type KafkaPublisher struct {
	writer MessageWriter
	logger *otelzap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *otelzap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, logger)
}

// NewKafkaPublisherWithWriter creates a publisher over a custom writer.
func NewKafkaPublisherWithWriter(writer MessageWriter, logger *otelzap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish writes events in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...OutcomeEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal outcome event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.PackageNo),
			Value: value,
			Headers: []kafka.Header{
				{Key: "status", Value: []byte(e.Status)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write outcome events: %w", err)
	}

	p.logger.Ctx(ctx).Debug("Published outcome events", zap.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when no brokers are configured.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, ...OutcomeEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
