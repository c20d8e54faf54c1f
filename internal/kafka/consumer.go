package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrSkip marks a message that can never be processed. The consumer commits
// it and moves on instead of redelivering it.
var ErrSkip = errors.New("skip message")

type MessageHandler interface {
	Handle(ctx context.Context, msg kafkago.Message) error
}

type Reader interface {
	Config() kafkago.ReaderConfig
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type Consumer struct {
	handler MessageHandler
	reader  Reader
	logger  *zap.Logger

	workers int
	jobs    chan jobItem

	idleBackoff     time.Duration
	errorBackoff    time.Duration
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration
}

type jobItem struct {
	msg    kafkago.Message
	result chan error
}

func NewConsumer(handler MessageHandler, reader Reader, workers int, logger *zap.Logger) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		handler:         handler,
		reader:          reader,
		logger:          logger,
		workers:         workers,
		jobs:            make(chan jobItem, workers*2),
		idleBackoff:     10 * time.Second,
		errorBackoff:    500 * time.Millisecond,
		retryBackoff:    200 * time.Millisecond,
		maxRetryBackoff: 30 * time.Second,
	}
}

// NewReader builds a group reader for the given topic.
func NewReader(brokers []string, topic, group string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafkago.FirstOffset,
	})
}

// Start blocks until ctx is done. Each fetched message is handed to a worker
// and the fetch loop waits for its result, so offsets are committed in the
// order the messages were received. A message is committed only once it is
// handled or skipped.
func (c *Consumer) Start(ctx context.Context) {
	rc := c.reader.Config()
	c.logger.Info("Starting Kafka consumer",
		zap.Strings("brokers", rc.Brokers),
		zap.String("group", rc.GroupID),
		zap.String("topic", rc.Topic),
		zap.Int("workers", c.workers),
	)

	for i := 0; i < c.workers; i++ {
		go c.worker(ctx, i)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if isBenignFetchTimeout(err) {
				c.logger.Debug("fetch timeout (idle), backing off", zap.Error(err))
				sleepWithContext(ctx, c.idleBackoff)
				continue
			}
			c.logger.Warn("FetchMessage error, backing off", zap.Error(err))
			sleepWithContext(ctx, c.errorBackoff)
			continue
		}

		procErr := c.process(ctx, msg)
		if ctx.Err() != nil {
			return
		}
		if procErr != nil {
			c.logger.Warn("skipping unprocessable message", zap.Error(procErr),
				zap.String("topic", msg.Topic), zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("commit failed",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			sleepWithContext(ctx, 200*time.Millisecond)
			continue
		}
		c.logger.Debug("message committed",
			zap.String("topic", msg.Topic), zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
	}
}

// process hands msg to a worker until the handler succeeds or reports
// ErrSkip. The reader never rewinds, so a failed message is retried here
// rather than refetched. It returns the skip error, or ctx.Err() when ctx
// ends first.
func (c *Consumer) process(ctx context.Context, msg kafkago.Message) error {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		done := make(chan error, 1)
		select {
		case c.jobs <- jobItem{msg: msg, result: done}:
		case <-ctx.Done():
			return ctx.Err()
		}

		var err error
		select {
		case err = <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err == nil || errors.Is(err, ErrSkip) {
			return err
		}

		c.logger.Error("handler failed; retrying message before commit",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
		sleepWithContext(ctx, backoff)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		backoff = min(backoff*2, c.maxRetryBackoff)
	}
}

func (c *Consumer) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-c.jobs:
			if it.result == nil {
				continue
			}

			msg := it.msg
			start := time.Now()
			err := c.handler.Handle(ctx, msg)
			elapsed := time.Since(start)

			if err != nil {
				c.logger.Error("message handling failed",
					zap.Int("worker", id),
					zap.Error(err),
					zap.String("topic", msg.Topic),
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Duration("elapsed", elapsed),
				)
				it.result <- err
				continue
			}

			c.logger.Debug("message handled",
				zap.Int("worker", id),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("value_bytes", len(msg.Value)),
				zap.Duration("elapsed", elapsed),
			)
			it.result <- nil
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func isBenignFetchTimeout(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Request Timed Out") ||
		strings.Contains(s, "no messages received from kafka within the allocated time")
}
