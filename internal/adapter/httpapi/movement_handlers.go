package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/usecase/wizard"
)

type beginMovementRequest struct {
	AccountID  string `json:"account_id"`
	Kind       string `json:"kind"`
	PlanID     string `json:"plan_id,omitempty"`
	PositionID string `json:"position_id,omitempty"`
}

type stepFieldsRequest struct {
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	Email         string `json:"email,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Description   string `json:"description,omitempty"`
}

type authorizeRequest struct {
	PIN string `json:"pin"`
}

type authorizeResponse struct {
	Token          string `json:"token"`
	ExpiresInSecs  int    `json:"expires_in_secs"`
	FailedAttempts int    `json:"failed_attempts"`
}

type commitRequest struct {
	Token string `json:"token"`
}

type counterpartyView struct {
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	Email         string `json:"email,omitempty"`
}

type sessionView struct {
	ID           string            `json:"id"`
	State        string            `json:"state"`
	Kind         string            `json:"kind"`
	Reference    string            `json:"reference"`
	AccountID    string            `json:"account_id"`
	Amount       string            `json:"amount"`
	Description  string            `json:"description,omitempty"`
	Counterparty *counterpartyView `json:"counterparty,omitempty"`
	Result       *transactionView  `json:"result,omitempty"`
}

type transactionView struct {
	ID           string            `json:"id"`
	AccountID    string            `json:"account_id"`
	Kind         string            `json:"kind"`
	Amount       string            `json:"amount"`
	Status       string            `json:"status"`
	Reference    string            `json:"reference"`
	Counterparty string            `json:"counterparty,omitempty"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// handleBeginMovement opens a wizard session for a new movement
func (s *Server) handleBeginMovement(w http.ResponseWriter, r *http.Request) {
	var req beginMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid account_id", domain.ErrValidation))
		return
	}

	input := wizard.BeginInput{
		AccountID: accountID,
		Kind:      domain.TransactionKind(req.Kind),
	}
	if req.PlanID != "" {
		planID, err := uuid.Parse(req.PlanID)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid plan_id", domain.ErrValidation))
			return
		}
		input.PlanID = &planID
	}
	if req.PositionID != "" {
		positionID, err := uuid.Parse(req.PositionID)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid position_id", domain.ErrValidation))
			return
		}
		input.PositionID = &positionID
	}

	session, err := s.Wizard.Begin(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionView(session))
}

// handleGetMovement returns the current state of a wizard session
func (s *Server) handleGetMovement(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.Wizard.Get(sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(session))
}

// handleAdvanceMovement submits the current step's fields and moves forward
func (s *Server) handleAdvanceMovement(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req stepFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
		return
	}

	fields := wizard.StepFields{
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		Email:         req.Email,
		Description:   req.Description,
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid amount format", domain.ErrValidation))
			return
		}
		fields.Amount = amount
	}

	session, err := s.Wizard.Advance(sessionID, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(session))
}

// handleBackMovement returns the session to its previous step
func (s *Server) handleBackMovement(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.Wizard.Back(sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(session))
}

// handleAuthorizeMovement verifies the account PIN and issues a
// single-use commit token
func (s *Server) handleAuthorizeMovement(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
		return
	}

	token, attempts, err := s.Wizard.Authorize(r.Context(), sessionID, req.PIN)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{
		Token:          token,
		ExpiresInSecs:  30,
		FailedAttempts: attempts,
	})
}

// handleCommitMovement executes the movement with a valid commit token
func (s *Server) handleCommitMovement(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
		return
	}

	transaction, err := s.Wizard.Commit(r.Context(), sessionID, req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(transaction))
}

// handleAbandonMovement discards a wizard session
func (s *Server) handleAbandonMovement(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.Wizard.Abandon(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func parseIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id", domain.ErrValidation)
	}
	return id, nil
}

func toSessionView(session *wizard.Session) sessionView {
	// Read through a locked snapshot; the session can advance concurrently
	snap := session.Snapshot()
	view := sessionView{
		ID:          snap.ID.String(),
		State:       string(snap.State),
		Kind:        string(snap.Draft.Kind),
		Reference:   snap.Draft.Reference,
		AccountID:   snap.Draft.AccountID.String(),
		Amount:      snap.Draft.Amount.String(),
		Description: snap.Draft.Description,
	}
	if snap.Draft.Kind == domain.KindTransfer {
		view.Counterparty = &counterpartyView{
			BankName:      snap.Draft.Counterparty.BankName,
			AccountNumber: snap.Draft.Counterparty.AccountNumber,
			AccountName:   snap.Draft.Counterparty.AccountName,
			Email:         snap.Draft.Counterparty.Email,
		}
	}
	if snap.Result != nil {
		result := toTransactionView(snap.Result)
		view.Result = &result
	}
	return view
}

func toTransactionView(transaction *domain.Transaction) transactionView {
	return transactionView{
		ID:           transaction.ID.String(),
		AccountID:    transaction.AccountID.String(),
		Kind:         string(transaction.Kind),
		Amount:       transaction.Amount.String(),
		Status:       string(transaction.Status),
		Reference:    transaction.Reference,
		Counterparty: transaction.Counterparty,
		Description:  transaction.Description,
		Metadata:     transaction.Metadata,
		CreatedAt:    transaction.CreatedAt,
	}
}
