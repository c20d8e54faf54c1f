// Package natsbus carries OrderPlaced events over core NATS when Kafka is not
// the configured bus.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/domain"
	"github.com/TemirB/coursemarket/internal/kafka"
)

type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

type Publisher struct {
	conn    conn
	subject string
	logger  *zap.Logger
}

func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("coursemarket"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

func NewPublisher(c *nats.Conn, subject string, logger *zap.Logger) *Publisher {
	return newPublisher(c, subject, logger)
}

func newPublisher(c conn, subject string, logger *zap.Logger) *Publisher {
	return &Publisher{conn: c, subject: subject, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event domain.OrderPlaced) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode OrderPlaced: %w", err)
	}
	return p.PublishRaw(ctx, event.OrderID.String(), payload)
}

// PublishRaw publishes and flushes, so a nil error means the server has
// received the event.
func (p *Publisher) PublishRaw(ctx context.Context, key string, payload []byte) error {
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Error("nats publish failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("nats publish: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		p.logger.Error("nats flush failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

type MessageHandler interface {
	Handle(ctx context.Context, msg kafkago.Message) error
}

// Subscribe delivers every event on subject to the handler, load balanced
// across the members of queue. Core NATS has no redelivery, so a failed event
// is handled again on the subscription goroutine until it succeeds, is
// skipped, or ctx ends.
func Subscribe(ctx context.Context, nc *nats.Conn, subject, queue string, h MessageHandler, logger *zap.Logger) (*nats.Subscription, error) {
	sub, err := nc.QueueSubscribe(subject, queue, func(m *nats.Msg) {
		msg := kafkago.Message{Topic: m.Subject, Value: m.Data}
		if err := deliver(ctx, h, msg, retryBackoff, maxRetryBackoff, logger); err != nil {
			logger.Error("nats event dropped", zap.String("subject", m.Subject), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	logger.Info("Subscribed to NATS", zap.String("subject", subject), zap.String("queue", queue))
	return sub, nil
}

const (
	retryBackoff    = 200 * time.Millisecond
	maxRetryBackoff = 30 * time.Second
)

// deliver returns nil once h accepts msg. A skip error or ctx ending is
// returned as is.
func deliver(ctx context.Context, h MessageHandler, msg kafkago.Message, backoff, maxBackoff time.Duration, logger *zap.Logger) error {
	for {
		err := h.Handle(ctx, msg)
		if err == nil || errors.Is(err, kafka.ErrSkip) {
			return err
		}
		logger.Warn("nats event failed, retrying", zap.String("subject", msg.Topic), zap.Duration("backoff", backoff), zap.Error(err))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
