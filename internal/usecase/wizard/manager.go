package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/usecase/authgate"
	"github.com/adebayof/monievault-backend/internal/usecase/ledger"
	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
)

// SessionTTL is how long an untouched session survives before it counts
// as abandoned. Abandonment has no ledger effect; nothing was written.
const SessionTTL = 30 * time.Minute

// ErrSessionNotFound indicates an unknown, expired or abandoned session
var ErrSessionNotFound = errors.New("wizard session not found")

// BeginInput describes the movement a new session will assemble
type BeginInput struct {
	AccountID  uuid.UUID
	Kind       domain.TransactionKind
	PlanID     *uuid.UUID
	PositionID *uuid.UUID
}

// Manager owns the live wizard sessions and drives a movement from first
// step to committed transaction. The commit path consumes a PIN token from
// the authentication gate and hands the assembled draft to the ledger
// engine under the session's stable reference, so retrying a commit can
// never double-debit.
type Manager struct {
	Engine *ledger.Engine
	Gate   *authgate.PINGate

	sessions *cache.Cache // session ID string -> *Session
}

// NewManager creates a new wizard session manager
func NewManager(engine *ledger.Engine, gate *authgate.PINGate) *Manager {
	return &Manager{
		Engine:   engine,
		Gate:     gate,
		sessions: cache.New(SessionTTL, 5*time.Minute),
	}
}

// Begin opens a new session for the given movement kind
func (m *Manager) Begin(ctx context.Context, input BeginInput) (*Session, error) {
	switch input.Kind {
	case domain.KindTransfer, domain.KindSavingsDeposit, domain.KindSavingsWithdrawal, domain.KindInvestmentPurchase:
	default:
		return nil, fmt.Errorf("%w: movement kind %q cannot be started from the wizard", domain.ErrValidation, input.Kind)
	}

	session := newSession(domain.MovementRequest{
		AccountID:  input.AccountID,
		Kind:       input.Kind,
		PlanID:     input.PlanID,
		PositionID: input.PositionID,
		Reference:  domain.NewReference(),
	})
	m.sessions.Set(session.ID.String(), session, SessionTTL)
	return session, nil
}

// Get retrieves a live session
func (m *Manager) Get(sessionID uuid.UUID) (*Session, error) {
	v, ok := m.sessions.Get(sessionID.String())
	if !ok {
		return nil, ErrSessionNotFound
	}
	return v.(*Session), nil
}

// Advance submits the current step's fields and moves the session forward
func (m *Manager) Advance(sessionID uuid.UUID, fields StepFields) (*Session, error) {
	session, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Advance(fields); err != nil {
		return session, err
	}
	m.touch(session)
	return session, nil
}

// Back returns the session to its previous step
func (m *Manager) Back(sessionID uuid.UUID) (*Session, error) {
	session, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Back(); err != nil {
		return session, err
	}
	m.touch(session)
	return session, nil
}

// Authorize verifies the caller's PIN for the session's account and
// returns the single-use token the commit must present
func (m *Manager) Authorize(ctx context.Context, sessionID uuid.UUID, pin string) (string, int, error) {
	session, err := m.Get(sessionID)
	if err != nil {
		return "", 0, err
	}
	snap := session.Snapshot()
	if snap.State != StateAwaitingPinAuthentication {
		return "", 0, fmt.Errorf("%w: session is not awaiting PIN authorization", domain.ErrValidation)
	}
	return m.Gate.Authorize(ctx, snap.Draft.AccountID, pin)
}

// Commit redeems the PIN token and executes the assembled movement.
// A completed session replays its original transaction. On engine failure
// the session stays at AwaitingPinAuthentication with all input preserved,
// so the caller can re-authorize and retry.
func (m *Manager) Commit(ctx context.Context, sessionID uuid.UUID, token string) (*domain.Transaction, error) {
	session, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State == StateCompleted {
		return session.Result, nil
	}
	if session.State != StateAwaitingPinAuthentication {
		return nil, fmt.Errorf("%w: session is not ready to commit", domain.ErrValidation)
	}

	accountID, err := m.Gate.Consume(token)
	if err != nil {
		return nil, err
	}
	if accountID != session.Draft.AccountID {
		return nil, domain.ErrAuthenticationFailed
	}

	tx, err := m.Engine.ExecuteMovement(ctx, ledger.MovementInput{
		AccountID:    session.Draft.AccountID,
		Kind:         session.Draft.Kind,
		Amount:       session.Draft.Amount,
		Counterparty: session.Draft.Counterparty,
		Description:  session.Draft.Description,
		Reference:    session.Draft.Reference,
		PlanID:       session.Draft.PlanID,
		PositionID:   session.Draft.PositionID,
	})
	if err != nil {
		return nil, err
	}

	session.State = StateCompleted
	session.Result = tx
	m.touch(session)
	return tx, nil
}

// Abandon discards a session before completion; no ledger effect
func (m *Manager) Abandon(sessionID uuid.UUID) {
	m.sessions.Delete(sessionID.String())
}

// touch refreshes the session's expiry after activity
func (m *Manager) touch(session *Session) {
	m.sessions.Set(session.ID.String(), session, SessionTTL)
}
