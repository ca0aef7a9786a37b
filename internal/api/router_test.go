package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"loan-origination/internal/api/handler"
	"loan-origination/internal/config"
	"loan-origination/internal/domain/customer"
	"loan-origination/internal/domain/loan"
	"loan-origination/internal/infrastructure/gateway"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCustomers struct{}

func (stubCustomers) Subscribe(_ context.Context, n string) (*customer.Customer, error) {
	return &customer.Customer{CustomerID: 1, CustomerNumber: n}, nil
}

func (stubCustomers) FindByNumber(_ context.Context, n string) (*customer.Customer, error) {
	return &customer.Customer{CustomerID: 1, CustomerNumber: n}, nil
}

func (stubCustomers) RefreshKYC(_ context.Context, n string) (*customer.Customer, error) {
	return &customer.Customer{CustomerID: 1, CustomerNumber: n}, nil
}

type stubLoans struct{}

func (stubLoans) CreateApplication(context.Context, string, loan.Money) (*loan.Loan, error) {
	return nil, loan.ErrActiveLoanExists
}

func (stubLoans) GetByLoanID(context.Context, uuid.UUID) (*loan.Loan, error) {
	return nil, loan.ErrNotFound
}

func (stubLoans) FindPendingByCustomer(context.Context, string) (*loan.Loan, error) {
	return nil, loan.ErrNoPendingLoan
}

func (stubLoans) ApplyDecision(context.Context, *loan.Loan, float64, float64) (*loan.Loan, error) {
	return nil, loan.ErrNoPendingLoan
}

type stubScoring struct{}

func (stubScoring) InitiateScoreQuery(context.Context, string) (string, error) { return "tok", nil }

func (stubScoring) ProcessScoreCallback(context.Context, string, float64, float64) (*loan.Loan, error) {
	return nil, loan.ErrNoPendingLoan
}

func (stubScoring) ScoreLoan(context.Context, *loan.Loan) (string, error) { return "tok", nil }

type stubGateway struct{}

func (stubGateway) RequestScore(_ context.Context, n string) *gateway.ScoreResult {
	return &gateway.ScoreResult{CustomerNumber: n, Score: 720, LimitAmount: 1000}
}

func (stubGateway) RegisterClient(context.Context, gateway.ClientRegistration) *gateway.RegistrationResult {
	return &gateway.RegistrationResult{Success: true}
}

func (stubGateway) TestConnection(context.Context) bool { return true }

func (stubGateway) BaseURL() string { return "http://scoring.local" }

type stubTransactions struct{}

func (stubTransactions) FetchTransactions(_ context.Context, n string) *gateway.TransactionData {
	return &gateway.TransactionData{CustomerNumber: n, Transactions: gateway.TransactionSummary{Count: 2, LastTransactionDate: "2025-03-20"}}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return newTestRouterWithReadiness(t, map[string]handler.ReadinessCheck{
		"database": func(context.Context) error { return nil },
	})
}

func newTestRouterWithReadiness(t *testing.T, readiness map[string]handler.ReadinessCheck) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Auth:         config.AuthConfig{Enabled: true, JWTSecret: "router-secret"},
			CallbackAuth: config.CallbackAuthConfig{Enabled: true, Username: "scoring", Password: "pw"},
		},
		Metrics: config.MetricsConfig{Path: "/metrics"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return SetupRouter(nil, Services{
		Customers:    stubCustomers{},
		Loans:        stubLoans{},
		Scoring:      stubScoring{},
		Gateway:      stubGateway{},
		Transactions: stubTransactions{},
		Readiness:    readiness,
	}, cfg, logger)
}

func issueToken(t *testing.T, router http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"username":"ops"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Token
}

func TestSetupRouter_OpenEndpoints(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health", "/health/scoring", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSetupRouter_BearerGroup(t *testing.T) {
	router := newTestRouter(t)

	t.Run("rejected without token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers/123", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("customer lookup with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/123", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, router))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("loan conflict maps to 409", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/loans", bytes.NewBufferString(`{"customerNumber":"123","amount":10}`))
		req.Header.Set("Authorization", "Bearer "+issueToken(t, router))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestSetupRouter_CallbackUsesBasicAuth(t *testing.T) {
	router := newTestRouter(t)
	body := `{"token":"tok","score":700,"limit":100}`

	t.Run("bearer token is not enough", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/scoring/callback", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+issueToken(t, router))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("basic credentials reach the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/scoring/callback", strings.NewReader(body))
		req.SetBasicAuth("scoring", "pw")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSetupRouter_HealthReportsDependencies(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, rec.Body.String())
	})

	t.Run("failing dependency turns into 503", func(t *testing.T) {
		router := newTestRouterWithReadiness(t, map[string]handler.ReadinessCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"unavailable","checks":{"database":"ok","redis":"dial tcp: connection refused"}}`, rec.Body.String())
	})

	t.Run("no dependencies configured", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouterWithReadiness(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})
}

func TestSetupRouter_TransactionsUseBasicAuth(t *testing.T) {
	router := newTestRouter(t)

	t.Run("bearer token is not enough", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/transactions/234774784", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, router))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("registered credentials get the summary", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/transactions/234774784", nil)
		req.SetBasicAuth("scoring", "pw")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"customerNumber":"234774784","transactions":{"count":2,"lastTransactionDate":"2025-03-20"}}`, rec.Body.String())
	})
}
