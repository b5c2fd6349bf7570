package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
)

// outboxRepository implements domain.OutboxRepository
type outboxRepository struct {
	db *DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *DB) domain.OutboxRepository {
	return &outboxRepository{db: db}
}

// NextPending returns the oldest pending event due for delivery,
// or nil when nothing is due
func (r *outboxRepository) NextPending(ctx context.Context, now time.Time) (*domain.OutboxEvent, error) {
	query := `
		SELECT id, kind, recipient, payload, status, attempts, next_run_at, created_at
		FROM outbox_events
		WHERE status = 'PENDING' AND next_run_at <= $1
		ORDER BY next_run_at
		LIMIT 1
	`
	var event domain.OutboxEvent
	var status string
	err := r.db.QueryRowContext(ctx, query, now).Scan(
		&event.ID,
		&event.Kind,
		&event.Recipient,
		&event.Payload,
		&status,
		&event.Attempts,
		&event.NextRunAt,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim outbox event: %w", err)
	}
	event.Status = domain.OutboxStatus(status)
	return &event, nil
}

// MarkSent marks an event as delivered
func (r *outboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox_events SET status = 'SENT' WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}
	return requireOneRow(res, domain.ErrEventNotFound)
}

// Reschedule records a failed attempt and sets the next run time
func (r *outboxRepository) Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextRun time.Time) error {
	query := `UPDATE outbox_events SET attempts = $1, next_run_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, attempts, nextRun, id)
	if err != nil {
		return fmt.Errorf("failed to reschedule outbox event: %w", err)
	}
	return requireOneRow(res, domain.ErrEventNotFound)
}

// MarkFailed marks an event as permanently failed
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox_events SET status = 'FAILED' WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return requireOneRow(res, domain.ErrEventNotFound)
}
