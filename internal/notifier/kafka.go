package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"github.com/good-yellow-bee/logalert/internal/models"
)

// ErrNotifierClosed is returned by Send after Close.
var ErrNotifierClosed = errors.New("notifier is closed")

// KafkaConfig holds Kafka channel configuration.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration // default: 10s
	Compression  string        // none, gzip, snappy, lz4, zstd
}

// Validate validates the Kafka configuration.
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("at least one broker is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	return nil
}

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes the webhook payload of each event to a topic,
// keyed by rule id so events of one rule stay ordered within a partition.
type KafkaNotifier struct {
	writer MessageWriter
	closed atomic.Bool
}

// NewKafkaNotifier creates a Kafka notifier backed by a kafka-go writer.
func NewKafkaNotifier(config KafkaConfig) (*KafkaNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Compression:  getCompression(config.Compression),
		Async:        false,
	}
	return NewKafkaNotifierWithWriter(writer), nil
}

// NewKafkaNotifierWithWriter creates a Kafka notifier on an existing writer.
func NewKafkaNotifierWithWriter(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

func getCompression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "snappy":
		return compress.Snappy
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return compress.None
	}
}

// Name returns "kafka".
func (k *KafkaNotifier) Name() string {
	return "kafka"
}

// Send publishes one message for event.
func (k *KafkaNotifier) Send(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule) error {
	if k.closed.Load() {
		return ErrNotifierClosed
	}

	data, err := json.Marshal(NewWebhookPayload(event))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RuleID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(WebhookEventType)},
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "rule_id", Value: []byte(event.RuleID)},
		},
		Time: event.CreatedAt,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to kafka: %w", err)
	}
	return nil
}

// Close closes the underlying writer. Further sends fail.
func (k *KafkaNotifier) Close() error {
	if k.closed.Swap(true) {
		return nil
	}
	return k.writer.Close()
}
