package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionStatus represents the lifecycle state of a position
type PositionStatus string

const (
	PositionStatusActive    PositionStatus = "ACTIVE"
	PositionStatusWithdrawn PositionStatus = "WITHDRAWN"
	PositionStatusCompleted PositionStatus = "COMPLETED"
)

// Position represents a user's stake in a plan (an active investment or
// savings placement). Positions are never physically deleted; closing one
// is a status transition so the history stays append-only.
type Position struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	PlanID          uuid.UUID
	Principal       decimal.Decimal
	AccruedInterest decimal.Decimal
	Status          PositionStatus
	OpenedAt        time.Time
	ClosedAt        *time.Time
}

// Validate ensures the position adheres to domain rules
func (p *Position) Validate() error {
	if p.Principal.LessThanOrEqual(decimal.Zero) {
		return errors.New("position principal must be positive")
	}
	if p.AccruedInterest.IsNegative() {
		return errors.New("position accrued interest cannot be negative")
	}
	switch p.Status {
	case PositionStatusActive, PositionStatusWithdrawn, PositionStatusCompleted:
	default:
		return errors.New("position status must be ACTIVE, WITHDRAWN or COMPLETED")
	}
	return nil
}

// ElapsedDays returns the number of whole days since the position opened
func (p *Position) ElapsedDays(now time.Time) int {
	return int(now.Sub(p.OpenedAt).Hours() / 24)
}

// Close transitions an active position to the given terminal status
func (p *Position) Close(status PositionStatus, at time.Time) error {
	if p.Status != PositionStatusActive {
		return errors.New("only an active position can be closed")
	}
	if status != PositionStatusWithdrawn && status != PositionStatusCompleted {
		return errors.New("close status must be WITHDRAWN or COMPLETED")
	}
	p.Status = status
	p.ClosedAt = &at
	return nil
}
