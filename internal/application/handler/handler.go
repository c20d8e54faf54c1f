package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/config"
	"github.com/TemirB/coursemarket/internal/domain"
	"github.com/TemirB/coursemarket/internal/kafka"
	"github.com/TemirB/coursemarket/internal/pkg/retry"
)

//go:generate mockgen -source handler.go -destination=handler_mock_test.go -package=handler

var (
	ErrBadJSON     = errors.New("bad json")
	ErrEnroll      = errors.New("enroll failed")
	ErrCircuitOpen = errors.New("circuit breaker open")
)

type Service interface {
	EnrollOrder(ctx context.Context, event domain.OrderPlaced) error
}

type brk interface {
	Allow() error
	Success()
	Failure()
}

type Observer interface {
	ObserveKafka(processMs float64, ok bool)
}

type Handler struct {
	service     Service
	breaker     brk
	observer    Observer
	logger      *zap.Logger
	retryPolicy config.Retry
}

func NewHandler(service Service, breaker brk, observer Observer, retryPolicy config.Retry, logger *zap.Logger) *Handler {
	return &Handler{
		service:     service,
		breaker:     breaker,
		observer:    observer,
		logger:      logger,
		retryPolicy: retryPolicy,
	}
}

// Handle enrolls the buyer of one OrderPlaced message. The consumer commits
// the offset after a nil return. Malformed messages are reported with
// kafka.ErrSkip so they are committed instead of redelivered forever; they
// never reach the breaker, which only tracks enrollment outcomes.
func (h *Handler) Handle(ctx context.Context, message kafkago.Message) (err error) {
	start := time.Now()
	defer func() {
		h.observer.ObserveKafka(float64(time.Since(start).Microseconds())/1000.0, err == nil)
	}()

	var event domain.OrderPlaced
	if err := json.Unmarshal(message.Value, &event); err != nil {
		h.logger.Error("bad json format",
			zap.Error(err),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		return fmt.Errorf("%w: %w", ErrBadJSON, kafka.ErrSkip)
	}
	if event.OrderID == uuid.Nil || event.StudentID == uuid.Nil || len(event.CourseIDs) == 0 {
		h.logger.Error("incomplete OrderPlaced event",
			zap.String("order_id", event.OrderID.String()),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		return fmt.Errorf("%w: %w", ErrBadJSON, kafka.ErrSkip)
	}

	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("circuit breaker is open",
			zap.Error(err),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	if err := retry.Do(ctx, h.retryPolicy, func() error {
		return h.service.EnrollOrder(ctx, event)
	}); err != nil {
		h.logger.Error("enroll failed after retries",
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)
		h.breaker.Failure()
		return ErrEnroll
	}

	h.breaker.Success()
	h.logger.Info("successfully processed order",
		zap.String("order_id", event.OrderID.String()),
		zap.Int("partition", message.Partition),
		zap.Int64("offset", message.Offset),
		zap.Int("value_bytes", len(message.Value)),
	)
	return nil
}
