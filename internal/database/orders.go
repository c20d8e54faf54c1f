package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/domain"
)

type OrderStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	outbox bool
}

type OrderOption func(*OrderStore)

// WithOutbox makes Place write the OrderPlaced event into order_outbox in
// the same transaction as the order.
func WithOutbox() OrderOption {
	return func(s *OrderStore) { s.outbox = true }
}

func NewOrderStore(pool *pgxpool.Pool, logger *zap.Logger, opts ...OrderOption) *OrderStore {
	s := &OrderStore{pool: pool, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Place writes the order header and one item per course atomically. A nil
// order with a nil error means the order was not written because the
// student or one of the courses does not exist.
func (s *OrderStore) Place(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) (*domain.Order, error) {
	order := &domain.Order{
		ID:        uuid.New(),
		StudentID: studentID,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Items:     make([]domain.OrderItem, 0, len(courseIDs)),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var known int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM courses WHERE id = ANY($1)`, courseIDs,
	).Scan(&known); err != nil {
		return nil, fmt.Errorf("check courses: %w", err)
	}
	if known != len(courseIDs) {
		s.logger.Info("Order references unknown courses",
			zap.String("student_id", studentID.String()),
			zap.Int("requested", len(courseIDs)),
			zap.Int("known", known),
		)
		return nil, nil
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO orders (id, student_id, created_at)
		SELECT $1, id, $3 FROM students WHERE id = $2`,
		order.ID, studentID, order.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, courseID := range courseIDs {
		batch.Queue(`INSERT INTO order_items (order_id, course_id) VALUES ($1, $2)`, order.ID, courseID)
		order.Items = append(order.Items, domain.OrderItem{OrderID: order.ID, CourseID: courseID})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("insert order items: %w", err)
	}

	if s.outbox {
		if err := insertOutbox(ctx, tx, order); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return order, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	payload, err := json.Marshal(domain.OrderPlaced{
		OrderID:   order.ID,
		StudentID: order.StudentID,
		CourseIDs: order.CourseIDs(),
	})
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_outbox (aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		order.ID, domain.EventOrderPlaced, payload, domain.OutboxPending, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	err := s.pool.QueryRow(ctx,
		`SELECT id, student_id, created_at FROM orders WHERE id = $1`, orderID,
	).Scan(&o.ID, &o.StudentID, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := s.items(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (s *OrderStore) GetAllForStudent(ctx context.Context, studentID uuid.UUID) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, student_id, created_at
		FROM orders
		WHERE student_id = $1
		ORDER BY created_at DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []uuid.UUID
	)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.StudentID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []domain.Order{}, nil
	}

	items, err := s.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (s *OrderStore) items(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, course_id
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.OrderID, &it.CourseID); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}
