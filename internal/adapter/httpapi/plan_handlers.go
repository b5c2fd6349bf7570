package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/usecase/interest"
)

type planView struct {
	ID                        string `json:"id"`
	Name                      string `json:"name"`
	Kind                      string `json:"kind"`
	InterestRatePercent       string `json:"interest_rate_percent"`
	DurationMonths            int    `json:"duration_months"`
	MinAmount                 string `json:"min_amount"`
	MaxAmount                 string `json:"max_amount,omitempty"`
	EarlyWithdrawalFeePercent string `json:"early_withdrawal_fee_percent"`
	MinDurationDays           int    `json:"min_duration_days"`
}

type previewReturnRequest struct {
	PlanID string `json:"plan_id"`
	Amount string `json:"amount"`
}

type previewReturnResponse struct {
	PlanID          string `json:"plan_id"`
	PlanName        string `json:"plan_name"`
	Amount          string `json:"amount"`
	ProjectedReturn string `json:"projected_return"`
	MaturityValue   string `json:"maturity_value"`
	DurationMonths  int    `json:"duration_months"`
}

// handleListPlans returns the plan catalog, optionally filtered by kind
func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	kind := domain.PlanKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", domain.PlanKindInvestment, domain.PlanKindSavings:
	default:
		writeError(w, r, fmt.Errorf("%w: kind must be INVESTMENT or SAVINGS", domain.ErrValidation))
		return
	}

	plans, err := s.Plans.List(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]planView, 0, len(plans))
	for _, plan := range plans {
		view := planView{
			ID:                        plan.ID.String(),
			Name:                      plan.Name,
			Kind:                      string(plan.Kind),
			InterestRatePercent:       plan.InterestRatePercent.String(),
			DurationMonths:            plan.DurationMonths,
			MinAmount:                 plan.MinAmount.String(),
			EarlyWithdrawalFeePercent: plan.EarlyWithdrawalFeePercent.String(),
			MinDurationDays:           plan.MinDurationDays,
		}
		if plan.MaxAmount != nil {
			view.MaxAmount = plan.MaxAmount.String()
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

// handlePreviewReturn quotes the projected return for placing an amount
// into a plan. Pure calculation; nothing is persisted.
func (s *Server) handlePreviewReturn(w http.ResponseWriter, r *http.Request) {
	var req previewReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
		return
	}

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid plan_id", domain.ErrValidation))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid amount format", domain.ErrValidation))
		return
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, r, fmt.Errorf("%w: amount must be positive", domain.ErrValidation))
		return
	}

	plan, err := s.Plans.GetByID(r.Context(), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := plan.CheckAmount(amount); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, previewReturnResponse{
		PlanID:          plan.ID.String(),
		PlanName:        plan.Name,
		Amount:          amount.String(),
		ProjectedReturn: interest.ProjectedReturn(amount, plan.InterestRatePercent, plan.DurationMonths).String(),
		MaturityValue:   interest.MaturityValue(amount, plan.InterestRatePercent, plan.DurationMonths).String(),
		DurationMonths:  plan.DurationMonths,
	})
}
