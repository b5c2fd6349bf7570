package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/usecase/activation"
	"github.com/adebayof/monievault-backend/internal/usecase/wizard"
)

// Server exposes the guided movement flow and account reads over HTTP
type Server struct {
	Wizard     *wizard.Manager
	Activation *activation.Service

	Accounts     domain.AccountRepository
	Plans        domain.PlanRepository
	Positions    domain.PositionRepository
	Transactions domain.TransactionRepository
}

// NewServer creates a new HTTP server instance
func NewServer(
	wizardManager *wizard.Manager,
	activationService *activation.Service,
	accounts domain.AccountRepository,
	plans domain.PlanRepository,
	positions domain.PositionRepository,
	transactions domain.TransactionRepository,
) *Server {
	return &Server{
		Wizard:       wizardManager,
		Activation:   activationService,
		Accounts:     accounts,
		Plans:        plans,
		Positions:    positions,
		Transactions: transactions,
	}
}

// Router builds the chi router with all routes registered.
// Activation endpoints stay outside the bearer gate so a fresh account
// can be opened and verified without a token.
func (s *Server) Router(apiToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)

	r.Route("/v1/activation", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/request-otp", s.handleRequestOTP)
		r.Post("/verify", s.handleVerifyOTP)
	})

	// Pure quote over public reference data; no account is touched
	r.Post("/v1/preview/return", s.handlePreviewReturn)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiToken))

		r.Get("/v1/plans", s.handleListPlans)

		r.Route("/v1/movements", func(r chi.Router) {
			r.Post("/", s.handleBeginMovement)
			r.Get("/{id}", s.handleGetMovement)
			r.Post("/{id}/advance", s.handleAdvanceMovement)
			r.Post("/{id}/back", s.handleBackMovement)
			r.Post("/{id}/authorize", s.handleAuthorizeMovement)
			r.Post("/{id}/commit", s.handleCommitMovement)
			r.Delete("/{id}", s.handleAbandonMovement)
		})

		r.Route("/v1/accounts", func(r chi.Router) {
			r.Get("/{id}", s.handleGetAccount)
			r.Get("/{id}/transactions", s.handleListTransactions)
			r.Get("/{id}/positions", s.handleListPositions)
		})
	})

	return r
}
