package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/domain"
)

type StudentStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStudentStore(pool *pgxpool.Pool, logger *zap.Logger) *StudentStore {
	return &StudentStore{pool: pool, logger: logger}
}

// Create registers a student. A duplicate email is reported as
// domain.ErrConflict so callers can tell it apart from a store fault.
func (s *StudentStore) Create(ctx context.Context, st domain.Student) (*domain.Student, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO students (id, email, full_name) VALUES ($1, $2, $3)`,
		st.ID, st.Email, st.FullName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("student %s: %w", st.Email, domain.ErrConflict)
		}
		s.logger.Error("Insert student failed", zap.String("student_id", st.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("insert student: %w", err)
	}
	return &st, nil
}

func (s *StudentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, email, full_name FROM students WHERE id = $1`, id)
	return scanStudent(row)
}

func (s *StudentStore) GetByAlias(ctx context.Context, email string) (*domain.Student, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, email, full_name FROM students WHERE email = $1`, email)
	return scanStudent(row)
}

func (s *StudentStore) GetAll(ctx context.Context, filter string, page, pageSize int) ([]domain.Student, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, full_name
		FROM students
		WHERE $1 = '' OR full_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY email
		LIMIT $2 OFFSET $3`,
		filter, pageSize, pageOffset(page, pageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("select students: %w", err)
	}
	defer rows.Close()

	students := make([]domain.Student, 0, pageSize)
	for rows.Next() {
		var st domain.Student
		if err := rows.Scan(&st.ID, &st.Email, &st.FullName); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func (s *StudentStore) Update(ctx context.Context, st domain.Student) (*domain.Student, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE students SET full_name = $3 WHERE id = $1 AND email = $2`,
		st.ID, st.Email, st.FullName,
	)
	if err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return &st, nil
}

func (s *StudentStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("Delete student failed", zap.String("student_id", id.String()), zap.Error(err))
		return false, fmt.Errorf("delete student: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanStudent(row pgx.Row) (*domain.Student, error) {
	var st domain.Student
	if err := row.Scan(&st.ID, &st.Email, &st.FullName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan student: %w", err)
	}
	return &st, nil
}
