package telemetry

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/dpup/nav.ersn.net/server/internal/lib/position"
)

// MessageWriter is the subset of *kafka.Writer used by Publisher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes position samples to the telemetry topic, keyed by
// session so one session's samples stay ordered within a partition.
type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewPublisher creates a publisher for cfg.Topic.
func NewPublisher(cfg Config, logger *zap.Logger) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, logger)
}

// NewPublisherWithWriter creates a publisher over a custom writer.
func NewPublisherWithWriter(writer MessageWriter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: writer, logger: logger}
}

// Publish writes one sample.
func (p *Publisher) Publish(ctx context.Context, key string, s position.Sample) error {
	value, err := EncodeSample(s)
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value, Time: s.Timestamp}); err != nil {
		return fmt.Errorf("failed to publish sample: %w", err)
	}
	p.logger.Debug("Published position sample", zap.String("key", key), zap.Stringer("coordinate", s.Coordinate))
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
