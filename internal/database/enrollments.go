package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/domain"
)

type EnrollmentStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewEnrollmentStore(pool *pgxpool.Pool, logger *zap.Logger) *EnrollmentStore {
	return &EnrollmentStore{pool: pool, logger: logger}
}

// Enroll adds every course to the student's enrollments in one transaction.
// Existing enrollments are left as they are, so redelivered events are
// harmless.
func (s *EnrollmentStore) Enroll(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) error {
	if len(courseIDs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, courseID := range courseIDs {
		batch.Queue(`
			INSERT INTO enrollments (student_id, course_id)
			VALUES ($1, $2)
			ON CONFLICT (student_id, course_id) DO NOTHING`,
			studentID, courseID,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert enrollments: %w", err)
	}
	return tx.Commit(ctx)
}

// UnEnroll reports whether an enrollment was removed.
func (s *EnrollmentStore) UnEnroll(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM enrollments WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	)
	if err != nil {
		s.logger.Error("Delete enrollment failed",
			zap.String("student_id", studentID.String()),
			zap.String("course_id", courseID.String()),
			zap.Error(err),
		)
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *EnrollmentStore) GetAll(ctx context.Context, studentID uuid.UUID) ([]domain.Enrollment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT student_id, course_id FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("select enrollments: %w", err)
	}
	defer rows.Close()

	out := []domain.Enrollment{}
	for rows.Next() {
		var e domain.Enrollment
		if err := rows.Scan(&e.StudentID, &e.CourseID); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
