package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/aluiziolira/go-catalog-harvester/models"
)

// MessageWriter is the subset of kafka.Writer used by KafkaWriter.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter publishes items to a topic keyed by item ID.
type KafkaWriter struct {
	writer MessageWriter
	topic  string

	mu      sync.Mutex
	written int
}

// NewKafkaWriter builds a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *KafkaWriter {
	return newKafkaWriter(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}, topic)
}

func newKafkaWriter(w MessageWriter, topic string) *KafkaWriter {
	return &KafkaWriter{writer: w, topic: topic}
}

// Write sends the batch as one produce call.
func (kw *KafkaWriter) Write(items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(items))
	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", item.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(item.ID),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "category", Value: []byte(item.Category)},
			},
		})
	}

	kw.mu.Lock()
	defer kw.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := kw.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish to kafka topic %s: %w", kw.topic, err)
	}
	kw.written += len(msgs)
	return nil
}

// Close flushes pending messages and closes the writer.
func (kw *KafkaWriter) Close() error {
	return kw.writer.Close()
}

// Validate ensures at least one message was published.
func (kw *KafkaWriter) Validate() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.written == 0 {
		return fmt.Errorf("kafka topic %s received no items", kw.topic)
	}
	return nil
}
