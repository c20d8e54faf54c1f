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

const courseColumns = `id, name, description, slug, author`

type CourseStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewCourseStore(pool *pgxpool.Pool, logger *zap.Logger) *CourseStore {
	return &CourseStore{pool: pool, logger: logger}
}

// Create inserts the course and returns nil when a row with the same id or
// slug already exists.
func (s *CourseStore) Create(ctx context.Context, c domain.Course) (*domain.Course, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		c.ID, c.Name, c.Description, c.Slug, c.Author,
	)
	if err != nil {
		s.logger.Error("Insert course failed", zap.String("course_id", c.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("insert course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return &c, nil
}

func (s *CourseStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	return scanCourse(row)
}

func (s *CourseStore) GetByAlias(ctx context.Context, slug string) (*domain.Course, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE slug = $1`, slug)
	return scanCourse(row)
}

// GetAll pages through courses ordered by name. An empty filter matches
// every course, otherwise the name must contain it case-insensitively.
func (s *CourseStore) GetAll(ctx context.Context, filter string, page, pageSize int) ([]domain.Course, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+courseColumns+`
		FROM courses
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY name, id
		LIMIT $2 OFFSET $3`,
		filter, pageSize, pageOffset(page, pageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("select courses: %w", err)
	}
	defer rows.Close()

	courses := make([]domain.Course, 0, pageSize)
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Slug, &c.Author); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Update rewrites the mutable fields. The slug is matched, not written, so an
// update carrying a different slug affects no rows and returns nil.
func (s *CourseStore) Update(ctx context.Context, c domain.Course) (*domain.Course, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE courses
		SET name = $3, description = $4, author = $5
		WHERE id = $1 AND slug = $2`,
		c.ID, c.Slug, c.Name, c.Description, c.Author,
	)
	if err != nil {
		s.logger.Error("Update course failed", zap.String("course_id", c.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("update course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return &c, nil
}

func (s *CourseStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("Delete course failed", zap.String("course_id", id.String()), zap.Error(err))
		return false, fmt.Errorf("delete course: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanCourse(row pgx.Row) (*domain.Course, error) {
	var c domain.Course
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Slug, &c.Author); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan course: %w", err)
	}
	return &c, nil
}
