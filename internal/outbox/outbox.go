// Package outbox delivers OrderPlaced events that the order store wrote in
// the same transaction as the order.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/domain"
)

//go:generate mockgen -source outbox.go -destination=outbox_mock_test.go -package=outbox

type Store interface {
	Pending(ctx context.Context, limit int) ([]domain.OutboxEntry, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause string, next time.Time) error
}

type RawPublisher interface {
	PublishRaw(ctx context.Context, key string, payload []byte) error
}

const maxBackoff = time.Hour

// Deferred acknowledges OrderPlaced immediately. The event row already
// exists, the Relay delivers it.
type Deferred struct {
	logger *zap.Logger
}

func NewDeferred(logger *zap.Logger) *Deferred {
	return &Deferred{logger: logger}
}

func (d *Deferred) Publish(_ context.Context, event domain.OrderPlaced) error {
	d.logger.Debug("OrderPlaced queued in outbox", zap.String("order_id", event.OrderID.String()))
	return nil
}

type Relay struct {
	store     Store
	publisher RawPublisher
	interval  time.Duration
	batch     int
	logger    *zap.Logger
	now       func() time.Time
}

func NewRelay(store Store, publisher RawPublisher, interval time.Duration, batch int, logger *zap.Logger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batch < 1 {
		batch = 100
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batch:     batch,
		logger:    logger,
		now:       time.Now,
	}
}

// Run polls the outbox every interval until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("Starting outbox relay",
		zap.Duration("interval", r.interval),
		zap.Int("batch", r.batch),
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil {
				r.logger.Error("outbox flush failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes one batch of due entries and returns how many were
// delivered. A failed entry is rescheduled with exponential backoff. Only
// store errors are returned.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	entries, err := r.store.Pending(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	var (
		sent     int
		firstErr error
	)
	for _, e := range entries {
		if err := r.publisher.PublishRaw(ctx, e.AggregateID.String(), e.Payload); err != nil {
			next := r.now().Add(backoff(r.interval, e.RetryCount))
			r.logger.Warn("outbox publish failed",
				zap.Int64("entry", e.ID),
				zap.Int("retry_count", e.RetryCount),
				zap.Time("next_retry_at", next),
				zap.Error(err),
			)
			if markErr := r.store.MarkFailed(ctx, e.ID, err.Error(), next); markErr != nil && firstErr == nil {
				firstErr = markErr
			}
			continue
		}
		// A failed mark only means the event may be sent twice.
		if err := r.store.MarkPublished(ctx, e.ID); err != nil {
			r.logger.Error("outbox mark published failed", zap.Int64("entry", e.ID), zap.Error(err))
		}
		sent++
	}
	return sent, firstErr
}

func backoff(base time.Duration, retries int) time.Duration {
	d := base
	for i := 0; i < retries; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
