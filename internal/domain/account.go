package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus represents the lifecycle state of an account
type AccountStatus string

const (
	AccountStatusPendingActivation AccountStatus = "PENDING_ACTIVATION"
	AccountStatusActive            AccountStatus = "ACTIVE"
	AccountStatusDeactivated       AccountStatus = "DEACTIVATED"
)

// Account represents a user's spendable balance
// Balance is mutated only through the ledger engine; accounts are never
// deleted, only deactivated
type Account struct {
	ID        uuid.UUID
	OwnerName string
	Email     string
	Balance   decimal.Decimal
	Currency  string
	PINHash   string
	Status    AccountStatus
	Version   int64 // Optimistic concurrency token, bumped on every balance write
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if a.OwnerName == "" {
		return errors.New("account owner name cannot be empty")
	}
	if a.Email == "" {
		return errors.New("account email cannot be empty")
	}
	if a.Currency == "" {
		return errors.New("account currency cannot be empty")
	}
	if a.Balance.IsNegative() {
		return errors.New("account balance cannot be negative")
	}
	return nil
}

// CanSpend reports whether the account may initiate debit movements
func (a *Account) CanSpend() bool {
	return a.Status == AccountStatusActive
}
