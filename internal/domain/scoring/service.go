package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loan-origination/internal/domain/customer"
	"loan-origination/internal/domain/loan"
	"loan-origination/internal/infrastructure/monitoring"
	"loan-origination/internal/pkg/apperrors"
	"loan-origination/internal/pkg/keylock"

	"github.com/google/uuid"
)

var (
	ErrCustomerNotFound = fmt.Errorf("%w: customer not found", apperrors.ErrNotFound)

	ErrScoreQueryInitiationFailed = fmt.Errorf("%w: score query initiation failed", apperrors.ErrUpstream)
)

// ScoreQueryGateway asks the scoring engine to score a customer and call
// back with the given token.
type ScoreQueryGateway interface {
	SubmitScoreQuery(ctx context.Context, customerNumber, token string) error
}

type ScoringService interface {
	InitiateScoreQuery(ctx context.Context, customerNumber string) (string, error)

	// ProcessScoreCallback decides the customer's PENDING loan with the
	// score and limit reported for token, then retires the token.
	ProcessScoreCallback(ctx context.Context, token string, score, limit float64) (*loan.Loan, error)

	ScoreLoan(ctx context.Context, l *loan.Loan) (string, error)
}

type scoringService struct {
	customers customer.CustomerService
	loans     loan.LoanService
	tokens    TokenStore
	gateway   ScoreQueryGateway
	locks     *keylock.Locker
	logger    *slog.Logger
}

var _ ScoringService = (*scoringService)(nil)

func NewScoringService(
	customers customer.CustomerService,
	loans loan.LoanService,
	tokens TokenStore,
	gateway ScoreQueryGateway,
	locks *keylock.Locker,
	logger *slog.Logger,
) ScoringService {
	if tokens == nil {
		panic("token store cannot be nil")
	}
	if gateway == nil {
		panic("score query gateway cannot be nil")
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &scoringService{
		customers: customers,
		loans:     loans,
		tokens:    tokens,
		gateway:   gateway,
		locks:     locks,
		logger:    logger.With(slog.String("component", "scoringService")),
	}
}

func (s *scoringService) InitiateScoreQuery(ctx context.Context, customerNumber string) (string, error) {
	customerNumber = customer.NormalizeNumber(customerNumber)
	if customerNumber == "" {
		return "", apperrors.NewValidationError("customerNumber", "customer number is required")
	}
	logCtx := s.logger.With(slog.String("customerNumber", customerNumber))

	cust, err := s.customers.FindByNumber(ctx, customerNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, "Score query for unknown customer")
			return "", fmt.Errorf("%w: %s", ErrCustomerNotFound, customerNumber)
		}
		return "", fmt.Errorf("failed to look up customer %s: %w", customerNumber, err)
	}

	token := uuid.NewString()
	rec := TokenRecord{Token: token, CustomerNumber: cust.CustomerNumber, IssuedAt: time.Now().UTC()}
	if err := s.tokens.Register(ctx, rec); err != nil {
		logCtx.ErrorContext(ctx, "Failed to register score token", slog.Any("error", err))
		return "", fmt.Errorf("failed to register score token: %w", err)
	}

	if err := s.gateway.SubmitScoreQuery(ctx, cust.CustomerNumber, token); err != nil {
		if derr := s.tokens.Discard(ctx, token); derr != nil {
			logCtx.ErrorContext(ctx, "Failed to discard score token after gateway failure", slog.Any("error", derr))
		}
		s.reportOutstanding(ctx)
		logCtx.ErrorContext(ctx, "Scoring gateway rejected score query", slog.Any("error", err))
		return "", fmt.Errorf("%w: %w", ErrScoreQueryInitiationFailed, err)
	}

	s.reportOutstanding(ctx)
	logCtx.InfoContext(ctx, "Score query initiated", slog.String("token", token))
	return token, nil
}

func (s *scoringService) ProcessScoreCallback(ctx context.Context, token string, score, limit float64) (*loan.Loan, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		monitoring.RecordScoreCallback("invalid_token")
		return nil, ErrInvalidToken
	}
	if err := loan.ValidateScore(score, limit); err != nil {
		monitoring.RecordScoreCallback("invalid_payload")
		return nil, err
	}

	rec, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			s.logger.WarnContext(ctx, "Score callback with unknown or consumed token")
			monitoring.RecordScoreCallback("invalid_token")
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to resolve score token: %w", err)
	}
	logCtx := s.logger.With(slog.String("customerNumber", rec.CustomerNumber))

	unlock := s.locks.Lock(rec.CustomerNumber)
	defer unlock()

	pending, err := s.loans.FindPendingByCustomer(ctx, rec.CustomerNumber)
	if err != nil {
		if errors.Is(err, loan.ErrNoPendingLoan) || errors.Is(err, loan.ErrCustomerNotSubscribed) {
			logCtx.WarnContext(ctx, "Score callback without a pending loan")
			monitoring.RecordScoreCallback("no_pending_loan")
			s.retireToken(ctx, token, logCtx)
			return nil, fmt.Errorf("%w for customer %s", loan.ErrNoPendingLoan, rec.CustomerNumber)
		}
		return nil, err
	}

	decided, err := s.loans.ApplyDecision(ctx, pending, score, limit)
	if err != nil {
		if errors.Is(err, loan.ErrNoPendingLoan) {
			monitoring.RecordScoreCallback("no_pending_loan")
			s.retireToken(ctx, token, logCtx)
		}
		return nil, err
	}

	if err := s.tokens.Consume(ctx, token); err != nil {
		logCtx.WarnContext(ctx, "Score token was already retired", slog.Any("error", err))
	}
	s.reportOutstanding(ctx)
	monitoring.RecordScoreCallback("decided")

	logCtx.InfoContext(ctx, "Score callback processed",
		slog.String("loanID", decided.ID.String()),
		slog.String("status", string(decided.Status)),
	)
	return decided, nil
}

func (s *scoringService) ScoreLoan(ctx context.Context, l *loan.Loan) (string, error) {
	if l == nil {
		return "", fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}
	return s.InitiateScoreQuery(ctx, l.CustomerNumber)
}

// retireToken drops a token that can no longer decide anything so it
// stops holding a capacity slot until expiry.
func (s *scoringService) retireToken(ctx context.Context, token string, logCtx *slog.Logger) {
	if err := s.tokens.Discard(ctx, token); err != nil {
		logCtx.WarnContext(ctx, "Failed to discard score token", slog.Any("error", err))
	}
	s.reportOutstanding(ctx)
}

func (s *scoringService) reportOutstanding(ctx context.Context) {
	n, err := s.tokens.Len(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "Could not count outstanding score tokens", slog.Any("error", err))
		return
	}
	monitoring.SetOutstandingScoreTokens(n)
}
