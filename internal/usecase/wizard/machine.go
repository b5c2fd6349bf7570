package wizard

import (
	"fmt"
	"sync"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State identifies a step of the guided movement flow
type State string

const (
	StateCollectingCounterpartyDetails State = "COLLECTING_COUNTERPARTY_DETAILS"
	StateCollectingRecipientInfo       State = "COLLECTING_RECIPIENT_INFO"
	StateCollectingAmount              State = "COLLECTING_AMOUNT"
	StateAwaitingPinAuthentication     State = "AWAITING_PIN_AUTHENTICATION"
	StateCompleted                     State = "COMPLETED"
)

// StepFields carries the inputs a caller submits for the current step.
// Only the fields the step cares about are read; the rest are ignored.
type StepFields struct {
	BankName      string
	AccountNumber string
	AccountName   string
	Email         string
	Amount        decimal.Decimal
	Description   string
}

// Session is the explicit state machine assembling one movement request.
// Forward transitions are gated by per-step validation; Back returns to
// the previous step without discarding anything already entered. The
// session holds the draft until commit or abandonment; it never touches
// the ledger itself.
type Session struct {
	ID    uuid.UUID
	State State
	Draft domain.MovementRequest

	// Result is set once the movement committed; a completed session
	// replays it instead of moving money again
	Result *domain.Transaction

	mu sync.Mutex
}

// Snapshot is a consistent copy of a session's observable state, safe to
// read while the session keeps moving
type Snapshot struct {
	ID     uuid.UUID
	State  State
	Draft  domain.MovementRequest
	Result *domain.Transaction
}

// Snapshot returns the session's state under its lock. Result points at
// the committed transaction, which is immutable once written.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:     s.ID,
		State:  s.State,
		Draft:  s.Draft,
		Result: s.Result,
	}
}

// newSession starts the machine at the step appropriate for the kind:
// transfers collect counterparty details first, plan movements have no
// external counterparty and begin at the amount step
func newSession(draft domain.MovementRequest) *Session {
	state := StateCollectingCounterpartyDetails
	if draft.Kind != domain.KindTransfer {
		state = StateCollectingAmount
	}
	return &Session{
		ID:    uuid.New(),
		State: state,
		Draft: draft,
	}
}

// Advance validates the submitted fields for the current step and moves
// the machine forward. Invalid input keeps the machine where it is.
func (s *Session) Advance(fields StepFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State {
	case StateCollectingCounterpartyDetails:
		s.Draft.Counterparty.BankName = fields.BankName
		s.Draft.Counterparty.AccountNumber = fields.AccountNumber
		if err := s.Draft.Counterparty.ValidateBankDetails(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		s.State = StateCollectingRecipientInfo

	case StateCollectingRecipientInfo:
		s.Draft.Counterparty.AccountName = fields.AccountName
		s.Draft.Counterparty.Email = fields.Email
		if err := s.Draft.Counterparty.ValidateRecipientInfo(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		s.State = StateCollectingAmount

	case StateCollectingAmount:
		s.Draft.Amount = fields.Amount
		s.Draft.Description = fields.Description
		if err := s.Draft.ValidateAmount(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		s.State = StateAwaitingPinAuthentication

	case StateAwaitingPinAuthentication:
		return fmt.Errorf("%w: PIN authorization is required at this step", domain.ErrValidation)

	case StateCompleted:
		return fmt.Errorf("%w: session already completed", domain.ErrValidation)

	default:
		return fmt.Errorf("%w: unknown wizard state %q", domain.ErrValidation, s.State)
	}
	return nil
}

// Back returns to the previous step, keeping every field already entered
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State {
	case StateCollectingRecipientInfo:
		s.State = StateCollectingCounterpartyDetails
	case StateCollectingAmount:
		if s.Draft.Kind == domain.KindTransfer {
			s.State = StateCollectingRecipientInfo
		} else {
			return fmt.Errorf("%w: already at the first step", domain.ErrValidation)
		}
	case StateAwaitingPinAuthentication:
		s.State = StateCollectingAmount
	case StateCompleted:
		return fmt.Errorf("%w: session already completed", domain.ErrValidation)
	default:
		return fmt.Errorf("%w: already at the first step", domain.ErrValidation)
	}
	return nil
}
