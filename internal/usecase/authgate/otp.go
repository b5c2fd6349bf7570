package authgate

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	cache "github.com/patrickmn/go-cache"
)

// OTPTTL is the absolute expiry of an issued code
const OTPTTL = 5 * time.Minute

// OTPService issues and verifies the 6-digit codes that gate account
// activation. Codes are bound to an email address; issuing a new code
// supersedes any earlier one for that email, and a verified code is
// invalidated immediately (single use).
type OTPService struct {
	codes *cache.Cache // normalized email -> issuedCode
	ttl   time.Duration
	now   func() time.Time
}

// issuedCode carries its own absolute expiry so validity is decided
// against the service clock, not the cache's housekeeping
type issuedCode struct {
	code      string
	expiresAt time.Time
}

// NewOTPService creates a new OTPService instance
func NewOTPService() *OTPService {
	return &OTPService{
		codes: cache.New(OTPTTL, time.Minute),
		ttl:   OTPTTL,
		now:   time.Now,
	}
}

// Issue generates a fresh 6-digit code for the email. Any previously
// issued code for the same email stops being valid, expired or not.
func (s *OTPService) Issue(email string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	s.codes.Set(normalizeEmail(email), issuedCode{
		code:      code,
		expiresAt: s.now().Add(s.ttl),
	}, s.ttl)
	return code, nil
}

// Verify checks the code against the most recently issued one for the
// email. On success the code is deleted so a second verification fails.
func (s *OTPService) Verify(email, code string) error {
	key := normalizeEmail(email)
	v, ok := s.codes.Get(key)
	if !ok {
		return domain.ErrAuthenticationFailed
	}
	issued := v.(issuedCode)
	if s.now().After(issued.expiresAt) {
		s.codes.Delete(key)
		return domain.ErrAuthenticationFailed
	}
	if issued.code != code {
		return domain.ErrAuthenticationFailed
	}
	s.codes.Delete(key)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// randomCode draws a uniform 6-digit code from crypto/rand
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
