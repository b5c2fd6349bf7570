package domain

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Counterparty describes the other side of a movement: the recipient of a
// transfer, or the plan a deposit/purchase goes into
type Counterparty struct {
	BankName      string
	AccountNumber string
	AccountName   string
	Email         string
	// Set when the counterparty is another account in this system; peer
	// transfers to internal accounts credit it in the same commit
	InternalAccountID *uuid.UUID
}

// Describe renders the counterparty for the transaction record
func (c Counterparty) Describe() string {
	parts := make([]string, 0, 3)
	if c.AccountName != "" {
		parts = append(parts, c.AccountName)
	}
	if c.BankName != "" {
		parts = append(parts, c.BankName)
	}
	if c.AccountNumber != "" {
		parts = append(parts, c.AccountNumber)
	}
	return strings.Join(parts, " / ")
}

// ValidateBankDetails checks the fields collected in the first wizard step
func (c Counterparty) ValidateBankDetails() error {
	if strings.TrimSpace(c.BankName) == "" {
		return errors.New("bank name cannot be empty")
	}
	digits := strings.TrimSpace(c.AccountNumber)
	if len(digits) < 10 {
		return errors.New("account number must have at least 10 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return errors.New("account number must contain only digits")
		}
	}
	return nil
}

// ValidateRecipientInfo checks the fields collected in the second wizard step
func (c Counterparty) ValidateRecipientInfo() error {
	if strings.TrimSpace(c.AccountName) == "" {
		return errors.New("recipient name cannot be empty")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return errors.New("recipient email is not a valid address")
		}
	}
	return nil
}

// MovementRequest is the in-flight draft of a movement assembled by the
// wizard. It is ephemeral: it lives only for the wizard session and is
// discarded on commit or abandonment.
type MovementRequest struct {
	AccountID    uuid.UUID
	Kind         TransactionKind
	Amount       decimal.Decimal
	Counterparty Counterparty
	Description  string
	PlanID       *uuid.UUID
	PositionID   *uuid.UUID
	// Reference is fixed when the draft is created so that retrying a commit
	// replays the same movement instead of producing a new one
	Reference string
}

// ValidateAmount checks the amount collected in the third wizard step
func (m *MovementRequest) ValidateAmount() error {
	if m.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be positive")
	}
	return nil
}
