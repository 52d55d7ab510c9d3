// Package kafka publishes filtered readings to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/pkg/logger"
)

// ErrNoBrokers is returned when a publisher is configured without brokers.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// MessageWriter is the part of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the publisher's logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithWriter replaces the underlying writer.
func WithWriter(w MessageWriter) Option {
	return func(p *Publisher) {
		if w != nil {
			p.writer = w
		}
	}
}

// Publisher writes each reading of a batch as one JSON message keyed by the
// reading's asset code, so all readings of an asset land on one partition.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger logger.Logger
	now    func() time.Time
}

// NewPublisher builds a publisher for topic on brokers.
func NewPublisher(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	p := &Publisher{
		topic:  topic,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.writer == nil {
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		}
	}
	return p, nil
}

// Deliver publishes batch. Either every message is written or an error is
// returned.
func (p *Publisher) Deliver(ctx context.Context, batch model.Batch) error {
	msgs := make([]kafka.Message, 0, len(batch))
	ts := p.now()
	for _, r := range batch {
		if r == nil {
			continue
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("kafka: encode reading %s: %w", r.UUID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.AssetCode),
			Value: data,
			Time:  ts,
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: write %d messages to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug(ctx, "published readings",
		logger.String("topic", p.topic),
		logger.Int("messages", len(msgs)))
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
