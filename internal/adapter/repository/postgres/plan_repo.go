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

// planRepository implements domain.PlanRepository
type planRepository struct {
	db *DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *DB) domain.PlanRepository {
	return &planRepository{db: db}
}

const planColumns = `id, name, kind, interest_rate_percent, duration_months, min_amount, max_amount, early_withdrawal_fee_percent, min_duration_days`

// GetByID retrieves a plan by its ID
func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE id = $1
	`
	return scanPlan(r.db.QueryRowContext(ctx, query, id))
}

// List retrieves all plans, optionally filtered by kind
func (r *planRepository) List(ctx context.Context, kindFilter domain.PlanKind) ([]*domain.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE $1 = '' OR kind = $1
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query, string(kindFilter))
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return plans, nil
}

// Create creates a new plan
func (r *planRepository) Create(ctx context.Context, plan *domain.Plan) error {
	query := `
		INSERT INTO plans (id, name, kind, interest_rate_percent, duration_months, min_amount, max_amount, early_withdrawal_fee_percent, min_duration_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var maxAmount interface{}
	if plan.MaxAmount != nil {
		maxAmount = plan.MaxAmount.String()
	}
	_, err := r.db.ExecContext(ctx, query,
		plan.ID,
		plan.Name,
		string(plan.Kind),
		plan.InterestRatePercent.String(),
		plan.DurationMonths,
		plan.MinAmount.String(),
		maxAmount,
		plan.EarlyWithdrawalFeePercent.String(),
		plan.MinDurationDays,
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	var plan domain.Plan
	var kind, rateStr, minStr, feeStr string
	var maxStr sql.NullString

	err := row.Scan(
		&plan.ID,
		&plan.Name,
		&kind,
		&rateStr,
		&plan.DurationMonths,
		&minStr,
		&maxStr,
		&feeStr,
		&plan.MinDurationDays,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}

	plan.Kind = domain.PlanKind(kind)
	if plan.InterestRatePercent, err = decimal.NewFromString(rateStr); err != nil {
		return nil, fmt.Errorf("failed to parse interest rate: %w", err)
	}
	if plan.MinAmount, err = decimal.NewFromString(minStr); err != nil {
		return nil, fmt.Errorf("failed to parse min amount: %w", err)
	}
	if maxStr.Valid {
		max, err := decimal.NewFromString(maxStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse max amount: %w", err)
		}
		plan.MaxAmount = &max
	}
	if plan.EarlyWithdrawalFeePercent, err = decimal.NewFromString(feeStr); err != nil {
		return nil, fmt.Errorf("failed to parse early withdrawal fee: %w", err)
	}

	return &plan, nil
}
