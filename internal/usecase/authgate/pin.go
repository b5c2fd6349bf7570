package authgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// TokenTTL bounds how long a PIN authorization stays usable. Tokens are
// consumed exactly once by the movement commit that follows authorization,
// so a short window is enough.
const TokenTTL = 30 * time.Second

// Attempt throttle per account: a small burst, then one attempt per 30s.
// Decided policy for repeated failures: throttle rather than hard-lock, so
// a forgotten PIN cannot be used to deny the owner their own account.
const (
	attemptBurst    = 3
	attemptInterval = 30 * time.Second
)

// ErrTooManyAttempts signals the caller to back off before retrying the PIN
var ErrTooManyAttempts = errors.New("too many failed PIN attempts, retry later")

// PINGate verifies a 4-digit PIN against the account's stored hash and
// mints single-use authorization tokens for movement commits
type PINGate struct {
	Accounts domain.AccountRepository

	tokens   *cache.Cache // token -> mintedToken
	tokenTTL time.Duration
	now      func() time.Time

	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
	failures map[uuid.UUID]int
}

// mintedToken carries its own absolute expiry so Consume decides
// validity against the gate clock, not the cache's housekeeping
type mintedToken struct {
	accountID uuid.UUID
	expiresAt time.Time
}

// NewPINGate creates a new PINGate instance
func NewPINGate(accounts domain.AccountRepository) *PINGate {
	return &PINGate{
		Accounts: accounts,
		tokens:   cache.New(TokenTTL, time.Minute),
		tokenTTL: TokenTTL,
		now:      time.Now,
		limiters: make(map[uuid.UUID]*rate.Limiter),
		failures: make(map[uuid.UUID]int),
	}
}

// HashPIN derives the stored hash for a plaintext PIN
func HashPIN(pin string) (string, error) {
	if err := validatePINShape(pin); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash PIN: %w", err)
	}
	return string(hash), nil
}

func validatePINShape(pin string) error {
	if len(pin) != 4 {
		return fmt.Errorf("%w: PIN must be exactly 4 digits", domain.ErrValidation)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: PIN must contain only digits", domain.ErrValidation)
		}
	}
	return nil
}

// Authorize verifies the PIN for the account. On success it returns a
// single-use token and resets the failure counter. On failure it returns
// ErrAuthenticationFailed along with the updated consecutive-failure count
// so the caller can surface it.
func (g *PINGate) Authorize(ctx context.Context, accountID uuid.UUID, pin string) (token string, attempts int, err error) {
	if err := validatePINShape(pin); err != nil {
		return "", g.failureCount(accountID), err
	}

	if !g.limiter(accountID).Allow() {
		return "", g.failureCount(accountID), ErrTooManyAttempts
	}

	account, err := g.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", 0, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte(pin)) != nil {
		count := g.recordFailure(accountID)
		return "", count, domain.ErrAuthenticationFailed
	}

	g.resetFailures(accountID)

	token = uuid.NewString()
	g.tokens.Set(token, mintedToken{
		accountID: accountID,
		expiresAt: g.now().Add(g.tokenTTL),
	}, g.tokenTTL)
	return token, 0, nil
}

// Consume redeems a token, invalidating it immediately. It returns the
// account the token was minted for, or ErrAuthenticationFailed if the token
// is unknown, expired or already used.
func (g *PINGate) Consume(token string) (uuid.UUID, error) {
	v, ok := g.tokens.Get(token)
	if !ok {
		return uuid.Nil, domain.ErrAuthenticationFailed
	}
	g.tokens.Delete(token)
	minted := v.(mintedToken)
	if g.now().After(minted.expiresAt) {
		return uuid.Nil, domain.ErrAuthenticationFailed
	}
	return minted.accountID, nil
}

func (g *PINGate) limiter(accountID uuid.UUID) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[accountID]
	if !ok {
		l = rate.NewLimiter(rate.Every(attemptInterval), attemptBurst)
		g.limiters[accountID] = l
	}
	return l
}

func (g *PINGate) recordFailure(accountID uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[accountID]++
	return g.failures[accountID]
}

func (g *PINGate) resetFailures(accountID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, accountID)
}

func (g *PINGate) failureCount(accountID uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures[accountID]
}
