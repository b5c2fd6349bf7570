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

// positionRepository implements domain.PositionRepository
type positionRepository struct {
	db *DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *DB) domain.PositionRepository {
	return &positionRepository{db: db}
}

const positionColumns = `id, account_id, plan_id, principal, accrued_interest, status, opened_at, closed_at`

// GetByID retrieves a position by its ID
func (r *positionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE id = $1
	`
	return scanPosition(r.db.QueryRowContext(ctx, query, id))
}

// ListByAccount retrieves all positions held by an account
func (r *positionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE account_id = $1
		ORDER BY opened_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}
	return positions, nil
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var position domain.Position
	var principalStr, accruedStr, status string
	var closedAt sql.NullTime

	err := row.Scan(
		&position.ID,
		&position.AccountID,
		&position.PlanID,
		&principalStr,
		&accruedStr,
		&status,
		&position.OpenedAt,
		&closedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}

	if position.Principal, err = decimal.NewFromString(principalStr); err != nil {
		return nil, fmt.Errorf("failed to parse principal: %w", err)
	}
	if position.AccruedInterest, err = decimal.NewFromString(accruedStr); err != nil {
		return nil, fmt.Errorf("failed to parse accrued interest: %w", err)
	}
	position.Status = domain.PositionStatus(status)
	if closedAt.Valid {
		t := closedAt.Time
		position.ClosedAt = &t
	}

	return &position, nil
}
