package domain

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID        uuid.UUID   `json:"id"`
	StudentID uuid.UUID   `json:"student_id"`
	CreatedAt time.Time   `json:"created_at"`
	Items     []OrderItem `json:"items"`
}

type OrderItem struct {
	OrderID  uuid.UUID `json:"order_id"`
	CourseID uuid.UUID `json:"course_id"`
}

// CourseIDs returns the course of every line item in insertion order.
func (o *Order) CourseIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.CourseID)
	}
	return ids
}

// OrderPlaced is announced once per successfully persisted order.
type OrderPlaced struct {
	OrderID   uuid.UUID   `json:"order_id"`
	StudentID uuid.UUID   `json:"student_id"`
	CourseIDs []uuid.UUID `json:"course_ids"`
}
