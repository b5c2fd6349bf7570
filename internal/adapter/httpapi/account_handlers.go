package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/usecase/interest"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type accountView struct {
	ID        string    `json:"id"`
	OwnerName string    `json:"owner_name"`
	Email     string    `json:"email"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type transactionListResponse struct {
	Transactions []transactionView `json:"transactions"`
	Total        int               `json:"total"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
}

type positionView struct {
	ID              string     `json:"id"`
	PlanID          string     `json:"plan_id"`
	PlanName        string     `json:"plan_name,omitempty"`
	Principal       string     `json:"principal"`
	AccruedInterest string     `json:"accrued_interest"`
	CurrentValue    string     `json:"current_value"`
	Status          string     `json:"status"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

// handleGetAccount returns an account's current balance and status
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	account, err := s.Accounts.GetByID(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView{
		ID:        account.ID.String(),
		OwnerName: account.OwnerName,
		Email:     account.Email,
		Balance:   account.Balance.String(),
		Currency:  account.Currency,
		Status:    string(account.Status),
		CreatedAt: account.CreatedAt,
	})
}

// handleListTransactions returns an account's history, newest first
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.Accounts.GetByID(r.Context(), accountID); err != nil {
		writeError(w, r, err)
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.Transactions.List(r.Context(), accountID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := s.Transactions.Count(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]transactionView, 0, len(transactions))
	for _, transaction := range transactions {
		views = append(views, toTransactionView(transaction))
	}
	writeJSON(w, http.StatusOK, transactionListResponse{
		Transactions: views,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	})
}

// handleListPositions returns an account's plan positions with their
// value accrued to now
func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.Accounts.GetByID(r.Context(), accountID); err != nil {
		writeError(w, r, err)
		return
	}

	positions, err := s.Positions.ListByAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now()
	views := make([]positionView, 0, len(positions))
	for _, position := range positions {
		view := positionView{
			ID:              position.ID.String(),
			PlanID:          position.PlanID.String(),
			Principal:       position.Principal.String(),
			AccruedInterest: position.AccruedInterest.String(),
			CurrentValue:    position.Principal.String(),
			Status:          string(position.Status),
			OpenedAt:        position.OpenedAt,
			ClosedAt:        position.ClosedAt,
		}
		// A missing plan should not break the listing; the position is
		// shown at principal value
		if plan, err := s.Plans.GetByID(r.Context(), position.PlanID); err == nil {
			view.PlanName = plan.Name
			if position.Status == domain.PositionStatusActive {
				view.CurrentValue = interest.CurrentValue(position, plan, now).String()
			}
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
