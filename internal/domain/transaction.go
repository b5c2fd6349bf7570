package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind represents the business reason for a movement
type TransactionKind string

const (
	KindDebit              TransactionKind = "DEBIT"
	KindCredit             TransactionKind = "CREDIT"
	KindTransfer           TransactionKind = "TRANSFER"
	KindInvestmentPurchase TransactionKind = "INVESTMENT_PURCHASE"
	KindSavingsDeposit     TransactionKind = "SAVINGS_DEPOSIT"
	KindSavingsWithdrawal  TransactionKind = "SAVINGS_WITHDRAWAL"
)

// TransactionStatus represents the settlement state of a transaction
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusPending   TransactionStatus = "PENDING"
	StatusFailed    TransactionStatus = "FAILED"
)

// Transaction represents one immutable entry in an account's history.
// The transaction log is append-only and is the sole source of truth for
// account history: every completed transaction corresponds to exactly one
// balance mutation, committed together with it.
type Transaction struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	Kind         TransactionKind
	Amount       decimal.Decimal // ABSOLUTE VALUE (always positive); Kind carries direction
	Status       TransactionStatus
	Reference    string
	Counterparty string
	Description  string
	Metadata     map[string]string // Audit details (penalty, net credited, plan/position IDs)
	CreatedAt    time.Time
}

// IsDebit reports whether this kind reduces the account balance
func (k TransactionKind) IsDebit() bool {
	switch k {
	case KindDebit, KindTransfer, KindInvestmentPurchase, KindSavingsDeposit:
		return true
	}
	return false
}

// SignedAmount returns the amount with the sign implied by the kind
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Kind.IsDebit() {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Validate ensures the transaction adheres to domain rules
func (t *Transaction) Validate() error {
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("transaction amount must be positive (absolute value)")
	}
	switch t.Kind {
	case KindDebit, KindCredit, KindTransfer, KindInvestmentPurchase, KindSavingsDeposit, KindSavingsWithdrawal:
	default:
		return errors.New("unknown transaction kind")
	}
	switch t.Status {
	case StatusCompleted, StatusPending, StatusFailed:
	default:
		return errors.New("unknown transaction status")
	}
	if t.Reference == "" {
		return errors.New("transaction reference cannot be empty")
	}
	return nil
}

// referenceAlphabet avoids ambiguous characters (no 0/O, 1/I/L)
const referenceAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewReference generates a globally unique, human-shareable transaction
// reference of the form MV-<unix millis>-<6 random chars>
func NewReference() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a UUID
		// suffix rather than panic inside a money path
		return fmt.Sprintf("MV-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:6])
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("MV-%d-%s", time.Now().UnixMilli(), string(buf))
}
