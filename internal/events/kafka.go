package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// KafkaPublisher is an EventHandler that writes events to a Kafka topic,
// keyed by job id so a job's events stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

var _ EventHandler = (*KafkaPublisher)(nil)

// NewKafkaProducer creates a synchronous producer that waits for all
// in-sync replicas to acknowledge each message.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}

// NewKafkaPublisher wraps a producer. The publisher owns the producer and
// closes it in Close.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger.With("component", "kafka_publisher", "topic", topic),
	}
}

// HandleEvent implements EventHandler.
func (p *KafkaPublisher) HandleEvent(ctx context.Context, event *JobEvent) error {
	payload, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.JobID.String()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s event for job %s: %w", event.Type, event.JobID, err)
	}

	p.logger.DebugContext(ctx, "published job event",
		"event_type", event.Type,
		"job_id", event.JobID,
		"partition", partition,
		"offset", offset)
	return nil
}

// Close closes the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
