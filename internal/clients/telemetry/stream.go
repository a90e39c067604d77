// Package telemetry carries position samples over Kafka: Stream consumes a
// topic as a position.Stream, Publisher produces to it.
package telemetry

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/dpup/nav.ersn.net/server/internal/lib/position"
)

// Config selects the Kafka topic carrying position messages.
type Config struct {
	Brokers []string
	Topic   string

	// GroupID enables consumer-group offsets. Without it each subscription
	// reads from the end of the partition.
	GroupID string
}

// MessageReader is the subset of *kafka.Reader used by Stream
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// retryDelay is the pause after a failed fetch.
const retryDelay = time.Second

// Stream is a position.Stream backed by a Kafka topic. Each subscription
// opens its own reader; messages are delivered one at a time in partition
// order.
type Stream struct {
	newReader func() MessageReader
	commit    bool
	logger    *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

var _ position.Stream = (*Stream)(nil)

// NewStream creates a stream reading cfg.Topic.
func NewStream(cfg Config, logger *zap.Logger) *Stream {
	return NewStreamWithReader(func() MessageReader {
		rc := kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 1e6,
			MaxWait:  500 * time.Millisecond,
		}
		if cfg.GroupID == "" {
			rc.StartOffset = kafka.LastOffset
		}
		return kafka.NewReader(rc)
	}, cfg.GroupID != "", logger)
}

// NewStreamWithReader creates a stream over a custom reader factory. commit
// controls whether delivered messages are committed.
func NewStreamWithReader(newReader func() MessageReader, commit bool, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{newReader: newReader, commit: commit, logger: logger}
}

// Subscribe implements position.Stream. Unsubscribe does not wait for the
// reader goroutine, so it is safe to call from inside the handler.
func (s *Stream) Subscribe(handler position.Handler) (position.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil, position.ErrAlreadySubscribed
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.gen++
	gen := s.gen
	s.cancel = cancel

	go s.consume(ctx, s.newReader(), handler)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gen == gen {
				s.cancel = nil
			}
			s.mu.Unlock()
			cancel()
		})
	}, nil
}

func (s *Stream) consume(ctx context.Context, reader MessageReader, handler position.Handler) {
	defer func() {
		if err := reader.Close(); err != nil {
			s.logger.Warn("Failed to close Kafka reader", zap.Error(err))
		}
	}()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			s.logger.Warn("Failed to fetch position message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		sample, err := DecodeSample(msg.Value, msg.Time)
		if err != nil {
			// Don't retry malformed messages
			s.logger.Warn("Skipping malformed position message",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
				zap.String("raw", string(msg.Value)))
		} else {
			if ctx.Err() != nil {
				return
			}
			handler(sample)
		}

		if s.commit {
			if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				s.logger.Warn("Failed to commit position message", zap.Error(err), zap.Int64("offset", msg.Offset))
			}
		}
	}
}
