// Package queue is the delivery side of the harness: an at-least-once
// channel abstraction, its Kafka implementation, and the chunked publisher
// that pushes a whole batch through it.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"knoxharness/logger"
)

// MaxBatchSize is the per-call entry cap enforced by the delivery channel.
// Larger batches must be pre-chunked by the caller.
const MaxBatchSize = 10

// Entry is one unit handed to the channel: a caller-assigned id and an
// opaque body.
type Entry struct {
	ID   string
	Body []byte
}

// Failure is one rejected entry with the channel-reported reason.
type Failure struct {
	ID     string
	Reason string
}

// Channel delivers entries best-effort with per-entry outcomes. A nil error
// with a non-empty failure list means the call itself went through but some
// entries were rejected.
type Channel interface {
	Send(ctx context.Context, entries []Entry) ([]Failure, error)
	Close() error
}

// KafkaChannel implements Channel over a Kafka topic.
type KafkaChannel struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaChannel builds a channel writing to the given broker and topic.
func NewKafkaChannel(broker, topic string) *KafkaChannel {
	return &KafkaChannel{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(broker),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		log: logger.L(),
	}
}

// Send writes up to MaxBatchSize entries, keyed by entry id. Per-message
// write errors come back as failures; any other error fails the whole call.
func (c *KafkaChannel) Send(ctx context.Context, entries []Entry) ([]Failure, error) {
	if len(entries) > MaxBatchSize {
		return nil, fmt.Errorf("channel accepts at most %d entries per call, got %d", MaxBatchSize, len(entries))
	}

	messages := make([]kafka.Message, len(entries))
	for i, entry := range entries {
		messages[i] = kafka.Message{Key: []byte(entry.ID), Value: entry.Body}
	}

	err := c.writer.WriteMessages(ctx, messages...)
	if err == nil {
		c.log.Debug("chunk delivered", zap.Int("entries", len(entries)))
		return nil, nil
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		var failures []Failure
		for i, werr := range writeErrs {
			if werr != nil {
				failures = append(failures, Failure{ID: entries[i].ID, Reason: werr.Error()})
			}
		}
		return failures, nil
	}
	return nil, err
}

// Close releases the underlying writer.
func (c *KafkaChannel) Close() error {
	return c.writer.Close()
}

// EnsureTopic verifies the ingestion topic exists on the broker. A missing
// topic is a setup error and must surface before any test body runs.
func EnsureTopic(ctx context.Context, broker, topic string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial broker %s: %w", broker, err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return fmt.Errorf("unable to locate topic %q on %s: %w (set KNOX_INGESTION_TOPIC)", topic, broker, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("topic %q has no partitions on %s", topic, broker)
	}
	return nil
}
