package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the delivery state of an outbox event
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

// OutboxEvent is a notification written in the same atomic unit as the
// movement it announces. The dispatcher delivers it after commit, so a
// delivery failure can never affect ledger correctness.
type OutboxEvent struct {
	ID        uuid.UUID
	Kind      string // e.g. "movement.completed"
	Recipient string // email address
	Payload   []byte // JSON-encoded event body
	Status    OutboxStatus
	Attempts  int
	NextRunAt time.Time
	CreatedAt time.Time
}
