package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/domain"
	"github.com/TemirB/coursemarket/internal/observability"
)

//go:generate mockgen -source service.go -destination=service_mock_test.go -package=order

type StudentLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error)
}

// Storage persists an order with its line items in one transaction and
// returns nil when nothing was written.
type Storage interface {
	Place(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) (*domain.Order, error)
	GetByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetAllForStudent(ctx context.Context, studentID uuid.UUID) ([]domain.Order, error)
}

type Publisher interface {
	Publish(ctx context.Context, event domain.OrderPlaced) error
}

type Counter interface {
	Increment(name string)
}

type Service struct {
	students  StudentLookup
	storage   Storage
	publisher Publisher
	counter   Counter
	logger    *zap.Logger
}

func NewService(students StudentLookup, storage Storage, publisher Publisher, counter Counter, logger *zap.Logger) *Service {
	return &Service{
		students:  students,
		storage:   storage,
		publisher: publisher,
		counter:   counter,
		logger:    logger,
	}
}

func (s *Service) GetByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.storage.GetByID(ctx, orderID)
}

func (s *Service) GetAllForStudent(ctx context.Context, studentID uuid.UUID) ([]domain.Order, error) {
	return s.storage.GetAllForStudent(ctx, studentID)
}

// Place records a purchase and announces it. A nil order with a nil error
// means the student is unknown or the store wrote nothing.
//
// The event is published after the order is committed and a publish failure
// is returned as is: the order stays persisted and no event is retried here.
func (s *Service) Place(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) (*domain.Order, error) {
	student, err := s.students.GetByID(ctx, studentID)
	s.counter.Increment(observability.OrdersCounter)
	if err != nil {
		s.logger.Error("Error while looking up student",
			zap.String("student_id", studentID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if student == nil {
		s.logger.Info("Order rejected, unknown student",
			zap.String("student_id", studentID.String()),
		)
		return nil, nil
	}

	courses := dedupe(courseIDs)
	if len(courses) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	order, err := s.storage.Place(ctx, studentID, courses)
	if err != nil {
		s.logger.Error("Error while placing order",
			zap.String("student_id", studentID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if order == nil {
		s.logger.Warn("Order was not persisted",
			zap.String("student_id", studentID.String()),
		)
		return nil, nil
	}

	event := domain.OrderPlaced{
		OrderID:   order.ID,
		StudentID: studentID,
		CourseIDs: courses,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Order committed but OrderPlaced was not published",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("publish order %s: %w", order.ID, err)
	}
	s.counter.Increment(observability.OrdersCounter)

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("student_id", studentID.String()),
		zap.Int("courses", len(courses)),
	)
	return order, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
