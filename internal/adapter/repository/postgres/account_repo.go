package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, owner_name, email, balance, currency, pin_hash, status, version, created_at, updated_at`

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
	`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an account by its owner email
func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email = $1
	`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

// Create creates a new account
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, owner_name, email, balance, currency, pin_hash, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.OwnerName,
		account.Email,
		account.Balance.String(),
		account.Currency,
		account.PINHash,
		string(account.Status),
		account.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// SetStatus transitions the account lifecycle status
func (r *accountRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus) error {
	query := `UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	return requireOneRow(res, domain.ErrAccountNotFound)
}

// SetPINHash stores a new PIN hash for the account
func (r *accountRepository) SetPINHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	query := `UPDATE accounts SET pin_hash = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, pinHash, id)
	if err != nil {
		return fmt.Errorf("failed to update account PIN: %w", err)
	}
	return requireOneRow(res, domain.ErrAccountNotFound)
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var balanceStr, status string

	err := row.Scan(
		&account.ID,
		&account.OwnerName,
		&account.Email,
		&balanceStr,
		&account.Currency,
		&account.PINHash,
		&status,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	account.Balance = balance
	account.Status = domain.AccountStatus(status)

	return &account, nil
}

func requireOneRow(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
