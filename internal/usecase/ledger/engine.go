package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/usecase/interest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxCommitRetries bounds how often a movement retries after a concurrent
// mutation conflict before surfacing ErrPersistenceConflict to the caller
const maxCommitRetries = 3

// MovementInput describes one requested balance mutation
type MovementInput struct {
	AccountID    uuid.UUID
	Kind         domain.TransactionKind
	Amount       decimal.Decimal
	Counterparty domain.Counterparty
	Description  string
	// Reference makes a commit idempotent: replaying an input with a
	// reference that already completed returns the original transaction.
	// Left empty, the engine generates one.
	Reference string
	// PlanID is required for savings deposits and investment purchases
	PlanID *uuid.UUID
	// PositionID is required for savings withdrawals
	PositionID *uuid.UUID
}

// Engine orchestrates one atomic movement: validate, mutate the account
// balance and append the transaction record as a single unit, then hand a
// notification event to the outbox. Nothing partial is ever observable —
// a movement either fully commits or leaves no trace.
type Engine struct {
	UoW          domain.UnitOfWork
	Transactions domain.TransactionRepository
	Plans        domain.PlanRepository
	Positions    domain.PositionRepository

	locks *accountLocks
	now   func() time.Time
}

// NewEngine creates a new ledger engine
func NewEngine(uow domain.UnitOfWork, transactions domain.TransactionRepository, plans domain.PlanRepository, positions domain.PositionRepository) *Engine {
	return &Engine{
		UoW:          uow,
		Transactions: transactions,
		Plans:        plans,
		Positions:    positions,
		locks:        newAccountLocks(),
		now:          time.Now,
	}
}

// ExecuteMovement runs one movement to completion.
// Logic:
//  1. Resolve plan/position context outside the critical section (plans
//     are immutable reference data)
//  2. Acquire the per-account locks
//  3. Replay check under the locks: a completed transaction with the
//     same reference is returned as-is, with no second mutation
//  4. Re-read the balance inside the atomic unit, re-validate
//     sufficiency at commit time, then write the new balance and append
//     the transaction in one unit
//  5. Enqueue the notification event in the same unit; delivery happens
//     asynchronously after commit
//
// The replay check repeats before every commit attempt. A duplicate
// reference written by a competing process surfaces from the store as
// ErrPersistenceConflict, so the retry finds the winner's transaction
// and returns it instead of debiting again.
func (e *Engine) ExecuteMovement(ctx context.Context, input MovementInput) (*domain.Transaction, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: movement amount must be positive", domain.ErrValidation)
	}

	if input.Reference == "" {
		input.Reference = domain.NewReference()
	}

	mctx, err := e.resolveContext(ctx, input)
	if err != nil {
		return nil, err
	}

	lockIDs := []uuid.UUID{input.AccountID}
	if input.Counterparty.InternalAccountID != nil {
		lockIDs = append(lockIDs, *input.Counterparty.InternalAccountID)
	}
	unlock := e.locks.lockAll(lockIDs...)
	defer unlock()

	var tx *domain.Transaction
	for attempt := 0; ; attempt++ {
		existing, err := e.Transactions.GetByReference(ctx, input.Reference)
		if err == nil {
			if existing.Status == domain.StatusCompleted {
				return existing, nil
			}
		} else if !errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, err
		}

		tx, err = e.commit(ctx, input, mctx)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, domain.ErrPersistenceConflict) || attempt >= maxCommitRetries {
			return nil, err
		}
	}
}

// movementContext carries the reference data resolved before the critical
// section begins
type movementContext struct {
	plan     *domain.Plan
	position *domain.Position
}

func (e *Engine) resolveContext(ctx context.Context, input MovementInput) (movementContext, error) {
	var mctx movementContext

	switch input.Kind {
	case domain.KindSavingsDeposit, domain.KindInvestmentPurchase:
		if input.PlanID == nil {
			return mctx, fmt.Errorf("%w: plan is required for %s", domain.ErrValidation, input.Kind)
		}
		plan, err := e.Plans.GetByID(ctx, *input.PlanID)
		if err != nil {
			return mctx, err
		}
		if err := plan.CheckAmount(input.Amount); err != nil {
			return mctx, err
		}
		mctx.plan = plan

	case domain.KindSavingsWithdrawal:
		if input.PositionID == nil {
			return mctx, fmt.Errorf("%w: position is required for a savings withdrawal", domain.ErrValidation)
		}
		position, err := e.Positions.GetByID(ctx, *input.PositionID)
		if err != nil {
			return mctx, err
		}
		plan, err := e.Plans.GetByID(ctx, position.PlanID)
		if err != nil {
			return mctx, err
		}
		mctx.plan = plan
		mctx.position = position

	case domain.KindTransfer, domain.KindDebit, domain.KindCredit:
		// No plan context

	default:
		return mctx, fmt.Errorf("%w: unknown movement kind %q", domain.ErrValidation, input.Kind)
	}

	return mctx, nil
}

// commit performs one attempt at the atomic section
func (e *Engine) commit(ctx context.Context, input MovementInput, mctx movementContext) (*domain.Transaction, error) {
	var tx *domain.Transaction

	err := e.UoW.Do(ctx, func(store domain.MovementStore) error {
		account, err := store.GetAccountForUpdate(ctx, input.AccountID)
		if err != nil {
			return err
		}

		now := e.now()
		record := &domain.Transaction{
			ID:           uuid.New(),
			AccountID:    account.ID,
			Kind:         input.Kind,
			Amount:       input.Amount,
			Status:       domain.StatusCompleted,
			Reference:    input.Reference,
			Counterparty: input.Counterparty.Describe(),
			Description:  input.Description,
			Metadata:     map[string]string{},
			CreatedAt:    now,
		}

		var newBalance decimal.Decimal
		switch {
		case input.Kind.IsDebit():
			if !account.CanSpend() {
				return domain.ErrAccountInactive
			}
			// Sufficiency is decided here, against the balance read inside
			// the atomic unit, regardless of any earlier pre-validation
			if account.Balance.LessThan(input.Amount) {
				return domain.ErrInsufficientFunds
			}
			newBalance = account.Balance.Sub(input.Amount)

		case input.Kind == domain.KindSavingsWithdrawal:
			net, err := e.applyWithdrawal(ctx, store, input, mctx, record, now)
			if err != nil {
				return err
			}
			newBalance = account.Balance.Add(net)

		default: // plain credit
			newBalance = account.Balance.Add(input.Amount)
		}

		if input.Kind == domain.KindSavingsDeposit || input.Kind == domain.KindInvestmentPurchase {
			if err := e.openPosition(ctx, store, input, mctx, record, now); err != nil {
				return err
			}
		}

		if err := record.Validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		if err := store.UpdateAccountBalance(ctx, account.ID, domain.NewBalance{
			Balance:         newBalance,
			ExpectedVersion: account.Version,
		}); err != nil {
			return err
		}
		if err := store.CreateTransaction(ctx, record); err != nil {
			return err
		}

		if input.Kind == domain.KindTransfer && input.Counterparty.InternalAccountID != nil {
			if err := e.creditInternalRecipient(ctx, store, input, account, now); err != nil {
				return err
			}
		}

		if err := e.appendNotification(ctx, store, account, record, now); err != nil {
			return err
		}

		tx = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// applyWithdrawal reduces the position principal and computes the net
// amount credited to the account. Early withdrawals pay the plan's fee:
// the full amount and the penalty are both recorded on the transaction,
// but only the net moves the balance.
func (e *Engine) applyWithdrawal(ctx context.Context, store domain.MovementStore, input MovementInput, mctx movementContext, record *domain.Transaction, now time.Time) (decimal.Decimal, error) {
	position, err := store.GetPositionForUpdate(ctx, *input.PositionID)
	if err != nil {
		return decimal.Zero, err
	}
	if position.AccountID != input.AccountID {
		return decimal.Zero, domain.ErrPositionNotFound
	}
	if position.Status != domain.PositionStatusActive {
		return decimal.Zero, fmt.Errorf("%w: position is not active", domain.ErrValidation)
	}
	if input.Amount.GreaterThan(position.Principal) {
		return decimal.Zero, domain.ErrInsufficientFunds
	}

	penalty := interest.PenaltyFor(input.Amount, position, mctx.plan, now)
	net := input.Amount.Sub(penalty)

	position.Principal = position.Principal.Sub(input.Amount)
	if position.Principal.IsZero() {
		if err := position.Close(domain.PositionStatusWithdrawn, now); err != nil {
			return decimal.Zero, err
		}
	}
	if err := store.UpdatePosition(ctx, position); err != nil {
		return decimal.Zero, err
	}

	record.Metadata["position_id"] = position.ID.String()
	record.Metadata["plan_id"] = mctx.plan.ID.String()
	record.Metadata["gross_amount"] = input.Amount.String()
	record.Metadata["penalty"] = penalty.String()
	record.Metadata["net_credited"] = net.String()
	return net, nil
}

// openPosition creates the stake bought by a savings deposit or an
// investment purchase
func (e *Engine) openPosition(ctx context.Context, store domain.MovementStore, input MovementInput, mctx movementContext, record *domain.Transaction, now time.Time) error {
	position := &domain.Position{
		ID:              uuid.New(),
		AccountID:       input.AccountID,
		PlanID:          mctx.plan.ID,
		Principal:       input.Amount,
		AccruedInterest: decimal.Zero,
		Status:          domain.PositionStatusActive,
		OpenedAt:        now,
	}
	if err := store.CreatePosition(ctx, position); err != nil {
		return err
	}

	record.Metadata["position_id"] = position.ID.String()
	record.Metadata["plan_id"] = mctx.plan.ID.String()
	record.Metadata["plan_name"] = mctx.plan.Name
	return nil
}

// creditInternalRecipient applies the credit leg of a peer transfer whose
// recipient is an account in this system, inside the same atomic unit so
// the two legs always net to zero
func (e *Engine) creditInternalRecipient(ctx context.Context, store domain.MovementStore, input MovementInput, sender *domain.Account, now time.Time) error {
	recipient, err := store.GetAccountForUpdate(ctx, *input.Counterparty.InternalAccountID)
	if err != nil {
		return err
	}

	credit := &domain.Transaction{
		ID:           uuid.New(),
		AccountID:    recipient.ID,
		Kind:         domain.KindCredit,
		Amount:       input.Amount,
		Status:       domain.StatusCompleted,
		Reference:    domain.NewReference(),
		Counterparty: sender.OwnerName,
		Description:  input.Description,
		Metadata:     map[string]string{"transfer_reference": input.Reference},
		CreatedAt:    now,
	}

	if err := store.UpdateAccountBalance(ctx, recipient.ID, domain.NewBalance{
		Balance:         recipient.Balance.Add(input.Amount),
		ExpectedVersion: recipient.Version,
	}); err != nil {
		return err
	}
	return store.CreateTransaction(ctx, credit)
}

// movementEvent is the outbox payload announcing a completed movement
type movementEvent struct {
	Reference    string          `json:"reference"`
	AccountID    uuid.UUID       `json:"account_id"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Counterparty string          `json:"counterparty,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (e *Engine) appendNotification(ctx context.Context, store domain.MovementStore, account *domain.Account, record *domain.Transaction, now time.Time) error {
	payload, err := json.Marshal(movementEvent{
		Reference:    record.Reference,
		AccountID:    account.ID,
		Kind:         string(record.Kind),
		Amount:       record.Amount,
		Currency:     account.Currency,
		Counterparty: record.Counterparty,
		CreatedAt:    record.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode movement event: %w", err)
	}

	return store.AppendEvent(ctx, &domain.OutboxEvent{
		ID:        uuid.New(),
		Kind:      "movement.completed",
		Recipient: account.Email,
		Payload:   payload,
		Status:    domain.OutboxStatusPending,
		NextRunAt: now,
		CreatedAt: now,
	})
}
