package domain

import "errors"

// Business rule errors surfaced to callers of the ledger engine and the
// authentication gate. Adapters map these to transport status codes.
var (
	// ErrAccountNotFound indicates the referenced account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrPlanNotFound indicates the referenced plan does not exist
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPositionNotFound indicates the referenced position does not exist
	ErrPositionNotFound = errors.New("position not found")

	// ErrTransactionNotFound indicates no transaction exists for a reference
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrEventNotFound indicates the referenced outbox event does not exist
	ErrEventNotFound = errors.New("outbox event not found")

	// ErrInsufficientFunds indicates the balance check failed at commit time
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPlanLimitViolation indicates an amount outside the plan's min/max range
	ErrPlanLimitViolation = errors.New("amount outside plan limits")

	// ErrAuthenticationFailed indicates a wrong PIN or OTP
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrValidation indicates malformed input; callers should re-prompt
	ErrValidation = errors.New("validation failed")

	// ErrPersistenceConflict indicates a concurrent mutation was detected;
	// the engine retries the commit a bounded number of times before
	// surfacing it
	ErrPersistenceConflict = errors.New("concurrent mutation conflict")

	// ErrAccountInactive indicates a movement on a non-active account
	ErrAccountInactive = errors.New("account is not active")
)
