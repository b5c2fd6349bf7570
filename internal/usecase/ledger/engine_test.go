package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adebayof/monievault-backend/internal/adapter/repository/memory"
	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(store *memory.Store) *Engine {
	return NewEngine(store, store.Transactions(), store.Plans(), store.Positions())
}

func seedAccount(t *testing.T, store *memory.Store, balance int64) *domain.Account {
	t.Helper()
	account := &domain.Account{
		ID:        uuid.New(),
		OwnerName: "Tunde Bakare",
		Email:     "tunde@example.com",
		Balance:   decimal.NewFromInt(balance),
		Currency:  "USD",
		Status:    domain.AccountStatusActive,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Accounts().Create(context.Background(), account))
	return account
}

func seedSavingsPlan(t *testing.T, store *memory.Store) *domain.Plan {
	t.Helper()
	max := decimal.NewFromInt(100000)
	plan := &domain.Plan{
		ID:                        uuid.New(),
		Name:                      "SafeLock 90",
		Kind:                      domain.PlanKindSavings,
		InterestRatePercent:       decimal.NewFromInt(10),
		DurationMonths:            3,
		MinAmount:                 decimal.NewFromInt(100),
		MaxAmount:                 &max,
		EarlyWithdrawalFeePercent: decimal.NewFromInt(5),
		MinDurationDays:           90,
	}
	require.NoError(t, store.Plans().Create(context.Background(), plan))
	return plan
}

func transferInput(accountID uuid.UUID, amount int64) MovementInput {
	return MovementInput{
		AccountID: accountID,
		Kind:      domain.KindTransfer,
		Amount:    decimal.NewFromInt(amount),
		Counterparty: domain.Counterparty{
			BankName:      "First Apex Bank",
			AccountNumber: "0123456789",
			AccountName:   "Chiamaka Eze",
		},
		Description: "Rent",
	}
}

func TestExecuteMovement_TransferHappyPath(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 1000)
	ctx := context.Background()

	tx, err := engine.ExecuteMovement(ctx, transferInput(account.ID, 300))
	require.NoError(t, err)

	assert.Equal(t, domain.KindTransfer, tx.Kind)
	assert.Equal(t, domain.StatusCompleted, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(300)))
	assert.NotEmpty(t, tx.Reference)

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(700)), "balance should be 700, got %s", got.Balance)

	count, err := store.Transactions().Count(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExecuteMovement_InsufficientFundsLeavesBalanceUntouched(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 1000)
	ctx := context.Background()

	_, err := engine.ExecuteMovement(ctx, transferInput(account.ID, 1200))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)), "failed movement must not change the balance")

	count, err := store.Transactions().Count(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "failed movement must not persist a transaction")
}

func TestExecuteMovement_ConcurrentTransfersNeverOverdraw(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.ExecuteMovement(ctx, transferInput(account.ID, 600))
		}(i)
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			failed++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of two concurrent 600 transfers against 1000 must succeed")
	assert.Equal(t, 1, failed)

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(400)), "balance should be 400, got %s", got.Balance)
	assert.False(t, got.Balance.IsNegative())
}

func TestExecuteMovement_InternalTransferConservesMoney(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	sender := seedAccount(t, store, 1000)
	recipient := seedAccount(t, store, 250)
	ctx := context.Background()

	input := transferInput(sender.ID, 400)
	input.Counterparty.InternalAccountID = &recipient.ID

	_, err := engine.ExecuteMovement(ctx, input)
	require.NoError(t, err)

	gotSender, err := store.Accounts().GetByID(ctx, sender.ID)
	require.NoError(t, err)
	gotRecipient, err := store.Accounts().GetByID(ctx, recipient.ID)
	require.NoError(t, err)

	assert.True(t, gotSender.Balance.Equal(decimal.NewFromInt(600)))
	assert.True(t, gotRecipient.Balance.Equal(decimal.NewFromInt(650)))

	// The two legs net to zero: total money is unchanged
	total := gotSender.Balance.Add(gotRecipient.Balance)
	assert.True(t, total.Equal(decimal.NewFromInt(1250)))

	// The recipient sees a credit referencing the transfer
	txs, err := store.Transactions().List(ctx, recipient.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.KindCredit, txs[0].Kind)
}

func TestExecuteMovement_IdempotentReplay(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 1000)
	ctx := context.Background()

	input := transferInput(account.ID, 300)
	input.Reference = domain.NewReference()

	first, err := engine.ExecuteMovement(ctx, input)
	require.NoError(t, err)

	second, err := engine.ExecuteMovement(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "replay must return the original transaction")

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(700)), "replay must not double-debit")
}

func TestExecuteMovement_ConcurrentReplaySameReferenceDebitsOnce(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 1000)
	ctx := context.Background()

	input := transferInput(account.ID, 300)
	input.Reference = domain.NewReference()

	var wg sync.WaitGroup
	results := make([]*domain.Transaction, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.ExecuteMovement(ctx, input)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].ID, results[1].ID, "both callers must observe the same transaction")

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(700)), "one reference must debit once, got %s", got.Balance)

	count, err := store.Transactions().Count(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "exactly one transaction for the shared reference")
}

func TestExecuteMovement_SavingsDepositOpensPosition(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 5000)
	plan := seedSavingsPlan(t, store)
	ctx := context.Background()

	tx, err := engine.ExecuteMovement(ctx, MovementInput{
		AccountID: account.ID,
		Kind:      domain.KindSavingsDeposit,
		Amount:    decimal.NewFromInt(2000),
		PlanID:    &plan.ID,
	})
	require.NoError(t, err)

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(3000)))

	positions, err := store.Positions().ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Principal.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, domain.PositionStatusActive, positions[0].Status)
	assert.Equal(t, positions[0].ID.String(), tx.Metadata["position_id"])
}

func TestExecuteMovement_PlanLimits(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 5000)
	plan := seedSavingsPlan(t, store)
	ctx := context.Background()

	// Below minimum
	_, err := engine.ExecuteMovement(ctx, MovementInput{
		AccountID: account.ID,
		Kind:      domain.KindSavingsDeposit,
		Amount:    decimal.NewFromInt(50),
		PlanID:    &plan.ID,
	})
	assert.ErrorIs(t, err, domain.ErrPlanLimitViolation)

	// Unknown plan
	missing := uuid.New()
	_, err = engine.ExecuteMovement(ctx, MovementInput{
		AccountID: account.ID,
		Kind:      domain.KindInvestmentPurchase,
		Amount:    decimal.NewFromInt(500),
		PlanID:    &missing,
	})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(5000)))
}

func TestExecuteMovement_EarlyWithdrawalPaysPenalty(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 5000)
	plan := seedSavingsPlan(t, store)
	ctx := context.Background()

	// Open a position, then pretend 30 days have passed (< 90 day minimum)
	opened := time.Now().AddDate(0, 0, -30)
	engine.now = func() time.Time { return opened }
	_, err := engine.ExecuteMovement(ctx, MovementInput{
		AccountID: account.ID,
		Kind:      domain.KindSavingsDeposit,
		Amount:    decimal.NewFromInt(2000),
		PlanID:    &plan.ID,
	})
	require.NoError(t, err)
	engine.now = time.Now

	positions, err := store.Positions().ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	tx, err := engine.ExecuteMovement(ctx, MovementInput{
		AccountID:  account.ID,
		Kind:       domain.KindSavingsWithdrawal,
		Amount:     decimal.NewFromInt(1000),
		PositionID: &positions[0].ID,
	})
	require.NoError(t, err)

	// 5% fee on 1000 = 50; net credited = 950
	assert.Equal(t, "50", tx.Metadata["penalty"])
	assert.Equal(t, "950", tx.Metadata["net_credited"])
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(1000)), "the transaction records the gross amount")

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	// 5000 - 2000 deposit + 950 net withdrawal
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(3950)), "got %s", got.Balance)

	remaining, err := store.Positions().GetByID(ctx, positions[0].ID)
	require.NoError(t, err)
	assert.True(t, remaining.Principal.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, domain.PositionStatusActive, remaining.Status)
}

func TestExecuteMovement_MatureWithdrawalHasNoPenalty(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 5000)
	plan := seedSavingsPlan(t, store)
	ctx := context.Background()

	opened := time.Now().AddDate(0, 0, -120)
	engine.now = func() time.Time { return opened }
	_, err := engine.ExecuteMovement(ctx, MovementInput{
		AccountID: account.ID,
		Kind:      domain.KindSavingsDeposit,
		Amount:    decimal.NewFromInt(2000),
		PlanID:    &plan.ID,
	})
	require.NoError(t, err)
	engine.now = time.Now

	positions, err := store.Positions().ListByAccount(ctx, account.ID)
	require.NoError(t, err)

	tx, err := engine.ExecuteMovement(ctx, MovementInput{
		AccountID:  account.ID,
		Kind:       domain.KindSavingsWithdrawal,
		Amount:     decimal.NewFromInt(2000),
		PositionID: &positions[0].ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "0", tx.Metadata["penalty"])

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(5000)), "full principal returns at maturity")

	// Fully withdrawn position transitions to WITHDRAWN, never deleted
	closed, err := store.Positions().GetByID(ctx, positions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusWithdrawn, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
}

func TestExecuteMovement_WithdrawingMoreThanPrincipalFails(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 5000)
	plan := seedSavingsPlan(t, store)
	ctx := context.Background()

	_, err := engine.ExecuteMovement(ctx, MovementInput{
		AccountID: account.ID,
		Kind:      domain.KindSavingsDeposit,
		Amount:    decimal.NewFromInt(500),
		PlanID:    &plan.ID,
	})
	require.NoError(t, err)

	positions, err := store.Positions().ListByAccount(ctx, account.ID)
	require.NoError(t, err)

	_, err = engine.ExecuteMovement(ctx, MovementInput{
		AccountID:  account.ID,
		Kind:       domain.KindSavingsWithdrawal,
		Amount:     decimal.NewFromInt(900),
		PositionID: &positions[0].ID,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestExecuteMovement_RejectsBadInput(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 1000)
	ctx := context.Background()

	_, err := engine.ExecuteMovement(ctx, transferInput(account.ID, 0))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = engine.ExecuteMovement(ctx, transferInput(uuid.New(), 100))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = engine.ExecuteMovement(ctx, MovementInput{
		AccountID: account.ID,
		Kind:      domain.KindSavingsDeposit,
		Amount:    decimal.NewFromInt(100),
		// PlanID missing
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExecuteMovement_InactiveAccountCannotSpend(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 1000)
	ctx := context.Background()

	require.NoError(t, store.Accounts().SetStatus(ctx, account.ID, domain.AccountStatusDeactivated))

	_, err := engine.ExecuteMovement(ctx, transferInput(account.ID, 100))
	assert.ErrorIs(t, err, domain.ErrAccountInactive)
}

func TestExecuteMovement_EnqueuesNotificationEvent(t *testing.T) {
	store := memory.NewStore()
	engine := newTestEngine(store)
	account := seedAccount(t, store, 1000)
	ctx := context.Background()

	_, err := engine.ExecuteMovement(ctx, transferInput(account.ID, 300))
	require.NoError(t, err)

	event, err := store.Outbox().NextPending(ctx, time.Now())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "movement.completed", event.Kind)
	assert.Equal(t, account.Email, event.Recipient)
	assert.Equal(t, domain.OutboxStatusPending, event.Status)
}
