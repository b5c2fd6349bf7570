package activation

import (
	"context"
	"strings"
	"testing"

	"github.com/adebayof/monievault-backend/internal/adapter/repository/memory"
	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/adebayof/monievault-backend/internal/usecase/authgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSender records the codes mailed out so tests can verify with them
type captureSender struct {
	lastBody string
}

func (s *captureSender) Send(ctx context.Context, to, subject, body string) error {
	s.lastBody = body
	return nil
}

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	// Body shape: "Your verification code is 123456. ..."
	fields := strings.Fields(s.lastBody)
	for i, f := range fields {
		if f == "is" && i+1 < len(fields) {
			return strings.TrimSuffix(fields[i+1], ".")
		}
	}
	t.Fatalf("no code found in body %q", s.lastBody)
	return ""
}

func setup(t *testing.T) (*Service, *memory.Store, *captureSender) {
	t.Helper()
	store := memory.NewStore()
	sender := &captureSender{}
	svc := NewService(store.Accounts(), authgate.NewOTPService(), sender)
	return svc, store, sender
}

func TestRegisterAndActivate(t *testing.T) {
	svc, store, sender := setup(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, RegisterInput{
		OwnerName: "Tunde Bakare",
		Email:     "tunde@example.com",
		PIN:       "4321",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusPendingActivation, account.Status)
	assert.True(t, account.Balance.IsZero())

	code := sender.lastCode(t)
	require.NoError(t, svc.Verify(ctx, "tunde@example.com", code))

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusActive, got.Status)
}

func TestVerify_WrongCode(t *testing.T) {
	svc, store, sender := setup(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, RegisterInput{
		OwnerName: "Tunde Bakare",
		Email:     "tunde@example.com",
		PIN:       "4321",
	})
	require.NoError(t, err)

	code := sender.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	assert.ErrorIs(t, svc.Verify(ctx, "tunde@example.com", wrong), domain.ErrAuthenticationFailed)

	got, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusPendingActivation, got.Status)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{OwnerName: "A", Email: "dup@example.com", PIN: "1234"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{OwnerName: "B", Email: "dup@example.com", PIN: "5678"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRequestOTP_SupersedesPrevious(t *testing.T) {
	svc, _, sender := setup(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{OwnerName: "Tunde", Email: "tunde@example.com", PIN: "4321"})
	require.NoError(t, err)
	first := sender.lastCode(t)

	require.NoError(t, svc.RequestOTP(ctx, "tunde@example.com"))
	second := sender.lastCode(t)

	if first != second {
		assert.ErrorIs(t, svc.Verify(ctx, "tunde@example.com", first), domain.ErrAuthenticationFailed)
	}
	assert.NoError(t, svc.Verify(ctx, "tunde@example.com", second))
}

func TestVerify_AlreadyActive(t *testing.T) {
	svc, _, sender := setup(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, RegisterInput{OwnerName: "Tunde", Email: "tunde@example.com", PIN: "4321"})
	require.NoError(t, err)

	code := sender.lastCode(t)
	require.NoError(t, svc.Verify(ctx, "tunde@example.com", code))

	// A second activation attempt is rejected before touching the OTP store
	err = svc.Verify(ctx, "tunde@example.com", code)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_ = account
}
