package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"loan-origination/internal/domain/customer"
	"loan-origination/internal/domain/loan"
	"loan-origination/internal/infrastructure/gateway"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var testLogger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) Subscribe(ctx context.Context, customerNumber string) (*customer.Customer, error) {
	args := m.Called(ctx, customerNumber)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) FindByNumber(ctx context.Context, customerNumber string) (*customer.Customer, error) {
	args := m.Called(ctx, customerNumber)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) RefreshKYC(ctx context.Context, customerNumber string) (*customer.Customer, error) {
	args := m.Called(ctx, customerNumber)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CreateApplication(ctx context.Context, customerNumber string, amount loan.Money) (*loan.Loan, error) {
	args := m.Called(ctx, customerNumber, amount)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetByLoanID(ctx context.Context, loanID uuid.UUID) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) FindPendingByCustomer(ctx context.Context, customerNumber string) (*loan.Loan, error) {
	args := m.Called(ctx, customerNumber)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ApplyDecision(ctx context.Context, pending *loan.Loan, score, limit float64) (*loan.Loan, error) {
	args := m.Called(ctx, pending, score, limit)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockScoringService struct {
	mock.Mock
}

func (m *MockScoringService) InitiateScoreQuery(ctx context.Context, customerNumber string) (string, error) {
	args := m.Called(ctx, customerNumber)
	return args.String(0), args.Error(1)
}

func (m *MockScoringService) ProcessScoreCallback(ctx context.Context, token string, score, limit float64) (*loan.Loan, error) {
	args := m.Called(ctx, token, score, limit)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScoringService) ScoreLoan(ctx context.Context, l *loan.Loan) (string, error) {
	args := m.Called(ctx, l)
	return args.String(0), args.Error(1)
}

type MockScoringGateway struct {
	mock.Mock
}

func (m *MockScoringGateway) RequestScore(ctx context.Context, customerNumber string) *gateway.ScoreResult {
	return m.Called(ctx, customerNumber).Get(0).(*gateway.ScoreResult)
}

func (m *MockScoringGateway) RegisterClient(ctx context.Context, reg gateway.ClientRegistration) *gateway.RegistrationResult {
	return m.Called(ctx, reg).Get(0).(*gateway.RegistrationResult)
}

func (m *MockScoringGateway) TestConnection(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockScoringGateway) BaseURL() string {
	return m.Called().String(0)
}

// serve routes a single request through chi so URL params resolve.
func serve(method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type MockTransactionSource struct {
	mock.Mock
}

func (m *MockTransactionSource) FetchTransactions(ctx context.Context, customerNumber string) *gateway.TransactionData {
	return m.Called(ctx, customerNumber).Get(0).(*gateway.TransactionData)
}
