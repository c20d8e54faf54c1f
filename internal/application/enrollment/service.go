package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/domain"
	"github.com/TemirB/coursemarket/internal/observability"
)

//go:generate mockgen -source service.go -destination=service_mock_test.go -package=enrollment

type Storage interface {
	Enroll(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) error
	UnEnroll(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
	GetAll(ctx context.Context, studentID uuid.UUID) ([]domain.Enrollment, error)
}

type Counter interface {
	Increment(name string)
}

type Service struct {
	storage Storage
	counter Counter
	logger  *zap.Logger
}

func NewService(storage Storage, counter Counter, logger *zap.Logger) *Service {
	return &Service{
		storage: storage,
		counter: counter,
		logger:  logger,
	}
}

// Enroll is idempotent: enrolling twice in the same course is not an error.
func (s *Service) Enroll(ctx context.Context, studentID, courseID uuid.UUID) error {
	return s.enroll(ctx, studentID, []uuid.UUID{courseID})
}

// EnrollOrder enrolls the buyer in every course of a placed order.
func (s *Service) EnrollOrder(ctx context.Context, event domain.OrderPlaced) error {
	if err := s.enroll(ctx, event.StudentID, event.CourseIDs); err != nil {
		return err
	}
	s.logger.Info("Order enrollments stored",
		zap.String("order_id", event.OrderID.String()),
		zap.String("student_id", event.StudentID.String()),
	)
	return nil
}

func (s *Service) enroll(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) error {
	t0 := time.Now()
	if err := s.storage.Enroll(ctx, studentID, courseIDs); err != nil {
		s.logger.Error("Error while storing enrollments",
			zap.String("student_id", studentID.String()),
			zap.Error(err),
		)
		return err
	}
	s.counter.Increment(observability.EnrollmentsCounter)

	s.logger.Debug("Enrollments stored",
		zap.String("student_id", studentID.String()),
		zap.Int("courses", len(courseIDs)),
		zap.Float64("db_write_ms", float64(time.Since(t0).Microseconds())/1000.0),
	)
	return nil
}

func (s *Service) UnEnroll(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	removed, err := s.storage.UnEnroll(ctx, studentID, courseID)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("Student unenrolled",
			zap.String("student_id", studentID.String()),
			zap.String("course_id", courseID.String()),
		)
	}
	return removed, nil
}

func (s *Service) GetAll(ctx context.Context, studentID uuid.UUID) ([]domain.Enrollment, error) {
	return s.storage.GetAll(ctx, studentID)
}
