package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// unitOfWork implements domain.UnitOfWork over a database transaction.
// Everything fn writes through the store commits or rolls back together.
type unitOfWork struct {
	db *DB
}

// NewUnitOfWork creates a unit of work backed by database transactions
func NewUnitOfWork(db *DB) domain.UnitOfWork {
	return &unitOfWork{db: db}
}

// Do runs fn inside a single database transaction
func (u *unitOfWork) Do(ctx context.Context, fn func(store domain.MovementStore) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&movementStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// movementStore implements domain.MovementStore over one open transaction
type movementStore struct {
	tx *sql.Tx
}

// GetAccountForUpdate reads an account and holds its row lock until the
// surrounding transaction ends
func (s *movementStore) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`
	return scanAccount(s.tx.QueryRowContext(ctx, query, id))
}

// UpdateAccountBalance writes the balance guarded by the stored version.
// A zero row count means another commit advanced the version first.
func (s *movementStore) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance domain.NewBalance) error {
	query := `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`
	res, err := s.tx.ExecContext(ctx, query, balance.Balance.String(), id, balance.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale version from a missing account
		var exists bool
		checkErr := s.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
		if checkErr == nil && !exists {
			return domain.ErrAccountNotFound
		}
		return domain.ErrPersistenceConflict
	}
	return nil
}

// GetPositionForUpdate reads a position and holds its row lock until the
// surrounding transaction ends
func (s *movementStore) GetPositionForUpdate(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE id = $1
		FOR UPDATE
	`
	return scanPosition(s.tx.QueryRowContext(ctx, query, id))
}

// CreateTransaction appends a transaction record
func (s *movementStore) CreateTransaction(ctx context.Context, transaction *domain.Transaction) error {
	metadata, err := marshalMetadata(transaction.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO transactions (id, account_id, kind, amount, status, reference, counterparty, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.tx.ExecContext(ctx, query,
		transaction.ID,
		transaction.AccountID,
		string(transaction.Kind),
		transaction.Amount.String(),
		string(transaction.Status),
		transaction.Reference,
		transaction.Counterparty,
		transaction.Description,
		metadata,
		transaction.CreatedAt,
	)
	if err != nil {
		// A unique violation on the reference means a competing commit won
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrPersistenceConflict
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// CreatePosition creates a new position
func (s *movementStore) CreatePosition(ctx context.Context, position *domain.Position) error {
	query := `
		INSERT INTO positions (id, account_id, plan_id, principal, accrued_interest, status, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.tx.ExecContext(ctx, query,
		position.ID,
		position.AccountID,
		position.PlanID,
		position.Principal.String(),
		position.AccruedInterest.String(),
		string(position.Status),
		position.OpenedAt,
		position.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

// UpdatePosition rewrites a position's mutable fields
func (s *movementStore) UpdatePosition(ctx context.Context, position *domain.Position) error {
	query := `
		UPDATE positions
		SET principal = $1, accrued_interest = $2, status = $3, closed_at = $4
		WHERE id = $5
	`
	res, err := s.tx.ExecContext(ctx, query,
		position.Principal.String(),
		position.AccruedInterest.String(),
		string(position.Status),
		position.ClosedAt,
		position.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrPositionNotFound
	}
	return nil
}

// AppendEvent enqueues an outbox event in the same transaction
func (s *movementStore) AppendEvent(ctx context.Context, event *domain.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, kind, recipient, payload, status, attempts, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.tx.ExecContext(ctx, query,
		event.ID,
		event.Kind,
		event.Recipient,
		event.Payload,
		string(event.Status),
		event.Attempts,
		event.NextRunAt,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}
