package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/usecase/activation"
)

type registerRequest struct {
	OwnerName string `json:"owner_name"`
	Email     string `json:"email"`
	Currency  string `json:"currency,omitempty"`
	PIN       string `json:"pin"`
}

type requestOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// handleRegister opens a pending account and emails the first OTP
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
		return
	}

	account, err := s.Activation.Register(r.Context(), activation.RegisterInput{
		OwnerName: req.OwnerName,
		Email:     req.Email,
		Currency:  req.Currency,
		PIN:       req.PIN,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, accountView{
		ID:        account.ID.String(),
		OwnerName: account.OwnerName,
		Email:     account.Email,
		Balance:   account.Balance.String(),
		Currency:  account.Currency,
		Status:    string(account.Status),
		CreatedAt: account.CreatedAt,
	})
}

// handleRequestOTP issues a fresh OTP, superseding any outstanding one
func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
		return
	}
	if err := s.Activation.RequestOTP(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "otp_sent"})
}

// handleVerifyOTP consumes the OTP and activates the account
func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
		return
	}
	if err := s.Activation.Verify(r.Context(), req.Email, req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "activated"})
}
