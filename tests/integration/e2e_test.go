//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/adebayof/monievault-backend/internal/adapter/httpapi"
	"github.com/adebayof/monievault-backend/internal/adapter/repository/postgres"
	"github.com/adebayof/monievault-backend/internal/logger"
	"github.com/adebayof/monievault-backend/internal/usecase/activation"
	"github.com/adebayof/monievault-backend/internal/usecase/authgate"
	"github.com/adebayof/monievault-backend/internal/usecase/ledger"
	"github.com/adebayof/monievault-backend/internal/usecase/seeder"
	"github.com/adebayof/monievault-backend/internal/usecase/wizard"
)

const apiToken = "integration-token"

var (
	db      *postgres.DB
	apiBase string
	sender  *captureSender
)

// captureSender records outgoing emails so tests can read OTP codes back
type captureSender struct {
	mu       sync.Mutex
	lastBody string
}

func (s *captureSender) Send(ctx context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBody = body
	return nil
}

var codePattern = regexp.MustCompile(`\d{6}`)

func (s *captureSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return codePattern.FindString(s.lastBody)
}

// TestMain starts a throwaway Postgres container, runs the migrations and
// serves the full HTTP API against it
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("monievault_test"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			log.Fatalf("could not terminate postgres container: %s", err)
		}
	}()

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("could not get connection string: %s", err)
	}

	db, err = postgres.NewDB(connString)
	if err != nil {
		log.Fatalf("could not connect to test database: %s", err)
	}
	defer db.Close()

	if err := db.Migrate("../../db/migrations"); err != nil {
		log.Fatalf("could not run migrations: %s", err)
	}

	logger.Init("error")

	if err := seeder.NewPlanSeeder(postgres.NewPlanRepository(db)).Seed(ctx); err != nil {
		log.Fatalf("could not seed plans: %s", err)
	}

	engine := ledger.NewEngine(
		postgres.NewUnitOfWork(db),
		postgres.NewTransactionRepository(db),
		postgres.NewPlanRepository(db),
		postgres.NewPositionRepository(db),
	)
	accounts := postgres.NewAccountRepository(db)
	gate := authgate.NewPINGate(accounts)
	manager := wizard.NewManager(engine, gate)

	sender = &captureSender{}
	activationService := activation.NewService(accounts, authgate.NewOTPService(), sender)

	api := httpapi.NewServer(
		manager,
		activationService,
		accounts,
		postgres.NewPlanRepository(db),
		postgres.NewPositionRepository(db),
		postgres.NewTransactionRepository(db),
	)
	server := httptest.NewServer(api.Router(apiToken))
	defer server.Close()
	apiBase = server.URL

	os.Exit(m.Run())
}

func doRequest(t *testing.T, method, path string, body interface{}, authed bool) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, apiBase+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func decode(t *testing.T, raw []byte, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
}

// openActiveAccount registers, activates and funds an account via the API
// plus one direct balance credit
func openActiveAccount(t *testing.T, email string, balance int64) string {
	t.Helper()

	resp, raw := doRequest(t, http.MethodPost, "/v1/activation/register", map[string]string{
		"owner_name": "Tunde Bakare",
		"email":      email,
		"pin":        "4321",
	}, false)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", raw)

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, raw, &created)
	require.Equal(t, "PENDING_ACTIVATION", created.Status)

	code := sender.lastCode()
	require.NotEmpty(t, code)

	resp, raw = doRequest(t, http.MethodPost, "/v1/activation/verify", map[string]string{
		"email": email,
		"code":  code,
	}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	// Accounts open at zero; fund directly for the movement scenarios
	_, err := db.Exec(`UPDATE accounts SET balance = $1 WHERE id = $2`, balance, created.ID)
	require.NoError(t, err)
	return created.ID
}

func accountBalance(t *testing.T, accountID string) string {
	t.Helper()
	var balance string
	require.NoError(t, db.QueryRow(`SELECT balance::text FROM accounts WHERE id = $1`, accountID).Scan(&balance))
	return balance
}

func TestTransferEndToEnd(t *testing.T) {
	accountID := openActiveAccount(t, "transfer@example.com", 1000)

	resp, raw := doRequest(t, http.MethodPost, "/v1/movements", map[string]string{
		"account_id": accountID,
		"kind":       "TRANSFER",
	}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", raw)

	var session struct {
		ID        string `json:"id"`
		State     string `json:"state"`
		Reference string `json:"reference"`
	}
	decode(t, raw, &session)
	require.Equal(t, "COLLECTING_COUNTERPARTY_DETAILS", session.State)

	base := "/v1/movements/" + session.ID
	steps := []map[string]string{
		{"bank_name": "First Apex Bank", "account_number": "0123456789"},
		{"account_name": "Chiamaka Eze", "email": "chiamaka@example.com"},
		{"amount": "300", "description": "Rent"},
	}
	for _, step := range steps {
		resp, raw = doRequest(t, http.MethodPost, base+"/advance", step, true)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	}

	resp, raw = doRequest(t, http.MethodPost, base+"/authorize", map[string]string{"pin": "4321"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	var auth struct {
		Token string `json:"token"`
	}
	decode(t, raw, &auth)

	resp, raw = doRequest(t, http.MethodPost, base+"/commit", map[string]string{"token": auth.Token}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	var committed struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	decode(t, raw, &committed)
	assert.Equal(t, "COMPLETED", committed.Status)
	assert.Equal(t, session.Reference, committed.Reference)

	assert.Equal(t, "700.0000", accountBalance(t, accountID))

	t.Run("replaying a completed session does not double debit", func(t *testing.T) {
		resp, raw := doRequest(t, http.MethodPost, base+"/commit", map[string]string{"token": "stale"}, true)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
		var replayed struct {
			Reference string `json:"reference"`
		}
		decode(t, raw, &replayed)
		assert.Equal(t, committed.Reference, replayed.Reference)
		assert.Equal(t, "700.0000", accountBalance(t, accountID))
	})

	t.Run("movement wrote an outbox event", func(t *testing.T) {
		var count int
		require.NoError(t, db.QueryRow(
			`SELECT COUNT(*) FROM outbox_events WHERE payload->>'reference' = $1`,
			committed.Reference,
		).Scan(&count))
		assert.Equal(t, 1, count)
	})
}

func TestSavingsDepositEndToEnd(t *testing.T) {
	accountID := openActiveAccount(t, "savings@example.com", 5000)

	// Pick a savings plan from the seeded catalog
	resp, raw := doRequest(t, http.MethodGet, "/v1/plans?kind=SAVINGS", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	var plans []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	decode(t, raw, &plans)
	require.NotEmpty(t, plans)
	planID := plans[0].ID

	resp, raw = doRequest(t, http.MethodPost, "/v1/movements", map[string]string{
		"account_id": accountID,
		"kind":       "SAVINGS_DEPOSIT",
		"plan_id":    planID,
	}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", raw)
	var session struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	decode(t, raw, &session)
	require.Equal(t, "COLLECTING_AMOUNT", session.State)

	base := "/v1/movements/" + session.ID
	resp, raw = doRequest(t, http.MethodPost, base+"/advance", map[string]string{"amount": "1000"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	resp, raw = doRequest(t, http.MethodPost, base+"/authorize", map[string]string{"pin": "4321"}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	var auth struct {
		Token string `json:"token"`
	}
	decode(t, raw, &auth)

	resp, raw = doRequest(t, http.MethodPost, base+"/commit", map[string]string{"token": auth.Token}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	assert.Equal(t, "4000.0000", accountBalance(t, accountID))

	resp, raw = doRequest(t, http.MethodGet, fmt.Sprintf("/v1/accounts/%s/positions", accountID), nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	var positions []struct {
		Principal string `json:"principal"`
		Status    string `json:"status"`
	}
	decode(t, raw, &positions)
	require.Len(t, positions, 1)
	assert.Equal(t, "1000.0000", positions[0].Principal)
	assert.Equal(t, "ACTIVE", positions[0].Status)
}

func TestCommitWithoutTokenFails(t *testing.T) {
	accountID := openActiveAccount(t, "notoken@example.com", 1000)

	resp, raw := doRequest(t, http.MethodPost, "/v1/movements", map[string]string{
		"account_id": accountID,
		"kind":       "TRANSFER",
	}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", raw)
	var session struct {
		ID string `json:"id"`
	}
	decode(t, raw, &session)

	base := "/v1/movements/" + session.ID
	steps := []map[string]string{
		{"bank_name": "First Apex Bank", "account_number": "0123456789"},
		{"account_name": "Chiamaka Eze"},
		{"amount": "100"},
	}
	for _, step := range steps {
		resp, raw = doRequest(t, http.MethodPost, base+"/advance", step, true)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	}

	resp, _ = doRequest(t, http.MethodPost, base+"/commit", map[string]string{"token": "made-up"}, true)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "1000.0000", accountBalance(t, accountID))
}
