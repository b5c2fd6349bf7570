package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanKind represents the product family a plan belongs to
type PlanKind string

const (
	PlanKindInvestment PlanKind = "INVESTMENT"
	PlanKindSavings    PlanKind = "SAVINGS"
)

// Plan represents immutable reference data describing the terms of an
// investment or savings product. Plans are read-only to the ledger engine;
// they are created and retired by an administrative process.
type Plan struct {
	ID                  uuid.UUID
	Name                string
	Kind                PlanKind
	InterestRatePercent decimal.Decimal
	DurationMonths      int
	MinAmount           decimal.Decimal
	MaxAmount           *decimal.Decimal // nil means no upper limit
	// Savings only: withdrawing before MinDurationDays costs this fee
	EarlyWithdrawalFeePercent decimal.Decimal
	MinDurationDays           int
}

// Validate ensures the plan adheres to domain rules
func (p *Plan) Validate() error {
	if p.Name == "" {
		return errors.New("plan name cannot be empty")
	}
	if p.Kind != PlanKindInvestment && p.Kind != PlanKindSavings {
		return errors.New("plan kind must be INVESTMENT or SAVINGS")
	}
	if p.InterestRatePercent.IsNegative() {
		return errors.New("plan interest rate cannot be negative")
	}
	if p.DurationMonths <= 0 {
		return errors.New("plan duration must be positive")
	}
	if p.MinAmount.LessThanOrEqual(decimal.Zero) {
		return errors.New("plan minimum amount must be positive")
	}
	if p.MaxAmount != nil && p.MaxAmount.LessThan(p.MinAmount) {
		return errors.New("plan maximum amount cannot be below minimum amount")
	}
	if p.EarlyWithdrawalFeePercent.IsNegative() {
		return errors.New("plan early withdrawal fee cannot be negative")
	}
	return nil
}

// CheckAmount verifies that an amount respects the plan's min/max limits
// Returns ErrPlanLimitViolation when the amount falls outside the range
func (p *Plan) CheckAmount(amount decimal.Decimal) error {
	if amount.LessThan(p.MinAmount) {
		return ErrPlanLimitViolation
	}
	if p.MaxAmount != nil && amount.GreaterThan(*p.MaxAmount) {
		return ErrPlanLimitViolation
	}
	return nil
}
