package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/domain"
)

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends OrderPlaced events keyed by order id, so every event of
// one order lands on the same partition.
type Publisher struct {
	writer Writer
	logger *zap.Logger
}

func NewWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewPublisher(writer Writer, logger *zap.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event domain.OrderPlaced) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode OrderPlaced: %w", err)
	}
	return p.PublishRaw(ctx, event.OrderID.String(), payload)
}

// PublishRaw sends an already encoded event.
func (p *Publisher) PublishRaw(ctx context.Context, key string, payload []byte) error {
	err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(domain.EventOrderPlaced)},
		},
	})
	if err != nil {
		p.logger.Error("kafka write failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("kafka write: %w", err)
	}
	p.logger.Debug("event published", zap.String("key", key), zap.Int("value_bytes", len(payload)))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
