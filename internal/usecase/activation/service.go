package activation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/usecase/authgate"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service handles account onboarding: registration opens an account in
// PENDING_ACTIVATION, an OTP is emailed to the owner, and a successful
// verification activates the account. Movements stay blocked until then.
type Service struct {
	Accounts domain.AccountRepository
	OTP      *authgate.OTPService
	Sender   OTPSender
}

// OTPSender delivers the activation code to the owner's email. Delivery is
// best-effort; the code can be re-requested.
type OTPSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewService creates a new activation service
func NewService(accounts domain.AccountRepository, otp *authgate.OTPService, sender OTPSender) *Service {
	return &Service{Accounts: accounts, OTP: otp, Sender: sender}
}

// RegisterInput holds the details a new account is opened with
type RegisterInput struct {
	OwnerName string
	Email     string
	Currency  string
	PIN       string
}

// Register opens a pending account and issues the first activation OTP
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	if input.OwnerName == "" || input.Email == "" {
		return nil, fmt.Errorf("%w: owner name and email are required", domain.ErrValidation)
	}
	if _, err := s.Accounts.GetByEmail(ctx, input.Email); err == nil {
		return nil, fmt.Errorf("%w: an account already exists for this email", domain.ErrValidation)
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	pinHash, err := authgate.HashPIN(input.PIN)
	if err != nil {
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	account := &domain.Account{
		ID:        uuid.New(),
		OwnerName: input.OwnerName,
		Email:     input.Email,
		Balance:   decimal.Zero,
		Currency:  currency,
		PINHash:   pinHash,
		Status:    domain.AccountStatusPendingActivation,
		CreatedAt: time.Now(),
	}
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.Accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	if err := s.sendOTP(ctx, account.Email); err != nil {
		return nil, err
	}
	return account, nil
}

// RequestOTP issues a fresh activation code, superseding any earlier one
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	account, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account.Status != domain.AccountStatusPendingActivation {
		return fmt.Errorf("%w: account is not awaiting activation", domain.ErrValidation)
	}
	return s.sendOTP(ctx, account.Email)
}

// Verify checks the OTP and activates the account on success
func (s *Service) Verify(ctx context.Context, email, code string) error {
	account, err := s.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if account.Status != domain.AccountStatusPendingActivation {
		return fmt.Errorf("%w: account is not awaiting activation", domain.ErrValidation)
	}
	if err := s.OTP.Verify(email, code); err != nil {
		return err
	}
	return s.Accounts.SetStatus(ctx, account.ID, domain.AccountStatusActive)
}

func (s *Service) sendOTP(ctx context.Context, email string) error {
	code, err := s.OTP.Issue(email)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code)
	if err := s.Sender.Send(ctx, email, "Verify your account", body); err != nil {
		return fmt.Errorf("failed to send activation code: %w", err)
	}
	return nil
}
