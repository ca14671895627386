package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers one message to the broker.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	prefix string
}

// NewKafkaPublisher writes to topics named prefix+message topic.
func NewKafkaPublisher(brokers []string, prefix string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("outbox: kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		prefix: prefix,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, m Message) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.prefix + m.Topic,
		Key:   []byte(m.PartitionKey),
		Value: m.Payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "outbox-id", Value: []byte(fmt.Sprint(m.ID))},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes messages to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, m Message) error {
	p.logger.InfoContext(ctx, "outbox message",
		"module", "outbox",
		"operation", "publish",
		"topic", m.Topic,
		"partition_key", m.PartitionKey,
		"outbox_id", m.ID,
		"payload", string(m.Payload),
	)
	return nil
}
