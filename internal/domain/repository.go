package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account persistence operations
type AccountRepository interface {
	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByEmail retrieves an account by its owner email
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Create creates a new account
	Create(ctx context.Context, account *Account) error

	// SetStatus transitions the account lifecycle status
	SetStatus(ctx context.Context, id uuid.UUID, status AccountStatus) error

	// SetPINHash stores a new PIN hash for the account
	SetPINHash(ctx context.Context, id uuid.UUID, pinHash string) error
}

// PlanRepository defines the interface for plan catalog reads
// Plans are reference data; the ledger engine never writes them
type PlanRepository interface {
	// GetByID retrieves a plan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)

	// List retrieves all plans, optionally filtered by kind
	// If kindFilter is empty, returns all plans
	List(ctx context.Context, kindFilter PlanKind) ([]*Plan, error)

	// Create creates a new plan (used by the seeder only)
	Create(ctx context.Context, plan *Plan) error
}

// PositionRepository defines the interface for position persistence operations
type PositionRepository interface {
	// GetByID retrieves a position by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)

	// ListByAccount retrieves all positions held by an account
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*Position, error)
}

// TransactionRepository defines the interface for transaction log reads
// Writes happen only inside a movement's atomic unit (see MovementStore)
type TransactionRepository interface {
	// GetByReference retrieves a transaction by its unique reference
	GetByReference(ctx context.Context, reference string) (*Transaction, error)

	// List retrieves a paginated list of transactions for an account,
	// newest first
	List(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Transaction, error)

	// Count returns the total number of transactions for an account
	Count(ctx context.Context, accountID uuid.UUID) (int, error)
}

// OutboxRepository defines the interface the notification dispatcher polls
type OutboxRepository interface {
	// NextPending claims the oldest pending event due for delivery
	// Returns nil when no event is due
	NextPending(ctx context.Context, now time.Time) (*OutboxEvent, error)

	// MarkSent marks an event as delivered
	MarkSent(ctx context.Context, id uuid.UUID) error

	// Reschedule records a failed attempt and sets the next run time
	Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextRun time.Time) error

	// MarkFailed marks an event as permanently failed
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// MovementStore is the slice of persistence visible inside one atomic
// commit. Balance write, transaction append, position changes and the
// outbox event all go through the same store so they commit or roll back
// together.
type MovementStore interface {
	// GetAccountForUpdate reads an account with an exclusive row-level claim
	// for the remainder of the atomic unit
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)

	// UpdateAccountBalance writes a new balance if the stored version still
	// matches expectedVersion; returns ErrPersistenceConflict otherwise
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance NewBalance) error

	// GetPositionForUpdate reads a position with an exclusive row-level
	// claim for the remainder of the atomic unit
	GetPositionForUpdate(ctx context.Context, id uuid.UUID) (*Position, error)

	// CreateTransaction appends a transaction record
	CreateTransaction(ctx context.Context, tx *Transaction) error

	// CreatePosition creates a new position
	CreatePosition(ctx context.Context, position *Position) error

	// UpdatePosition rewrites a position's mutable fields
	UpdatePosition(ctx context.Context, position *Position) error

	// AppendEvent enqueues an outbox event in the same atomic unit
	AppendEvent(ctx context.Context, event *OutboxEvent) error
}

// NewBalance carries a balance write together with its concurrency token
type NewBalance struct {
	Balance         decimal.Decimal
	ExpectedVersion int64
}

// UnitOfWork runs fn inside a single atomic unit. If fn returns an error
// every write made through the store is rolled back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(store MovementStore) error) error
}
