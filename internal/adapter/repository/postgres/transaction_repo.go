package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, account_id, kind, amount, status, reference, counterparty, description, metadata, created_at`

// GetByReference retrieves a transaction by its unique reference
func (r *transactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE reference = $1
	`
	return scanTransaction(r.db.QueryRowContext(ctx, query, reference))
}

// List retrieves a paginated list of transactions for an account, newest first
func (r *transactionRepository) List(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

// Count returns the total number of transactions for an account
func (r *transactionRepository) Count(ctx context.Context, accountID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE account_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var transaction domain.Transaction
	var kind, amountStr, status string
	var metadata []byte

	err := row.Scan(
		&transaction.ID,
		&transaction.AccountID,
		&kind,
		&amountStr,
		&status,
		&transaction.Reference,
		&transaction.Counterparty,
		&transaction.Description,
		&metadata,
		&transaction.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	transaction.Kind = domain.TransactionKind(kind)
	transaction.Status = domain.TransactionStatus(status)
	if transaction.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &transaction.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
	}

	return &transaction, nil
}
