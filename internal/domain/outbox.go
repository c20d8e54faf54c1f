package domain

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

const EventOrderPlaced = "OrderPlaced"

// OutboxEntry is an event written in the same transaction as its order.
type OutboxEntry struct {
	ID          int64
	AggregateID uuid.UUID
	EventType   string
	Payload     []byte
	Status      OutboxStatus
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	NextRetryAt *time.Time
	PublishedAt *time.Time
}
