package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-origination/internal/domain/customer"
	"loan-origination/internal/event"
	"loan-origination/internal/infrastructure/monitoring"
	"loan-origination/internal/pkg/apperrors"
	"loan-origination/internal/pkg/keylock"

	"github.com/google/uuid"
)

type LoanService interface {
	CreateApplication(ctx context.Context, customerNumber string, amount Money) (*Loan, error)

	GetByLoanID(ctx context.Context, loanID uuid.UUID) (*Loan, error)

	FindPendingByCustomer(ctx context.Context, customerNumber string) (*Loan, error)

	// ApplyDecision runs the approval policy for a PENDING loan and persists
	// the outcome. The passed loan is left untouched.
	ApplyDecision(ctx context.Context, pending *Loan, score, limit float64) (*Loan, error)
}

type loanServiceImpl struct {
	repo            Repository
	customerService customer.CustomerService
	locks           *keylock.Locker
	pub             event.EventPublisher
	logger          *slog.Logger
}

var _ LoanService = (*loanServiceImpl)(nil)

func NewLoanService(r Repository, cs customer.CustomerService, locks *keylock.Locker, pub event.EventPublisher, logger *slog.Logger) LoanService {
	if locks == nil {
		locks = keylock.New()
	}
	if pub == nil {
		pub = event.NopPublisher{}
	}
	return &loanServiceImpl{
		repo:            r,
		customerService: cs,
		locks:           locks,
		pub:             pub,
		logger:          logger.With(slog.String("component", "loanService")),
	}
}

func (s *loanServiceImpl) CreateApplication(ctx context.Context, customerNumber string, amount Money) (*Loan, error) {
	customerNumber = customer.NormalizeNumber(customerNumber)
	logCtx := s.logger.With(slog.String("customerNumber", customerNumber), slog.Float64("amount", amount))
	logCtx.InfoContext(ctx, "Creating loan application")

	if err := ValidateAmount(amount); err != nil {
		logCtx.WarnContext(ctx, "Rejected loan application with invalid amount")
		return nil, err
	}

	cust, err := s.customerService.FindByNumber(ctx, customerNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, "Customer not subscribed")
			return nil, fmt.Errorf("%w: %s", ErrCustomerNotSubscribed, customerNumber)
		}
		if errors.Is(err, apperrors.ErrValidation) {
			return nil, err
		}
		logCtx.ErrorContext(ctx, "Failed to look up customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to verify customer %s: %w", customerNumber, err)
	}

	unlock := s.locks.Lock(cust.CustomerNumber)
	defer unlock()

	active, err := s.repo.HasActiveLoan(ctx, cust.CustomerID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to check for active loans", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check active loans: %w", err)
	}
	if active {
		logCtx.WarnContext(ctx, "Customer already has an active loan")
		return nil, ErrActiveLoanExists
	}

	l, err := NewLoan(cust.CustomerID, cust.CustomerNumber, amount)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, l); err != nil {
		if errors.Is(err, ErrActiveLoanExists) {
			logCtx.WarnContext(ctx, "Active loan created concurrently by another instance")
			return nil, err
		}
		logCtx.ErrorContext(ctx, "Failed to store loan", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	monitoring.RecordLoanApplication()
	logCtx.InfoContext(ctx, "Loan application created", slog.String("loanID", l.ID.String()))

	evt := event.LoanCreatedEvent{
		Timestamp:      time.Now(),
		LoanID:         l.ID.String(),
		CustomerNumber: l.CustomerNumber,
		Amount:         l.Amount,
	}
	if err := s.pub.PublishLoanCreated(ctx, evt); err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish loan created event", slog.Any("error", err))
	}

	return l, nil
}

func (s *loanServiceImpl) GetByLoanID(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	l, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", slog.String("loanID", loanID.String()), slog.Any("error", err))
		return nil, fmt.Errorf("failed to get loan %s: %w", loanID, err)
	}
	return l, nil
}

func (s *loanServiceImpl) FindPendingByCustomer(ctx context.Context, customerNumber string) (*Loan, error) {
	cust, err := s.customerService.FindByNumber(ctx, customerNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCustomerNotSubscribed, customerNumber)
		}
		return nil, fmt.Errorf("failed to verify customer %s: %w", customerNumber, err)
	}

	l, err := s.repo.FindPendingByCustomer(ctx, cust.CustomerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w for customer %s", ErrNoPendingLoan, customerNumber)
		}
		return nil, fmt.Errorf("failed to find pending loan: %w", err)
	}
	return l, nil
}

func (s *loanServiceImpl) ApplyDecision(ctx context.Context, pending *Loan, score, limit float64) (*Loan, error) {
	if pending == nil {
		return nil, fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}
	if err := ValidateScore(score, limit); err != nil {
		return nil, err
	}

	decided := *pending
	if err := decided.Decide(score, limit); err != nil {
		return nil, err
	}

	if err := s.repo.SaveDecision(ctx, &decided); err != nil {
		if errors.Is(err, ErrNoPendingLoan) {
			s.logger.WarnContext(ctx, "Loan was decided concurrently", slog.String("loanID", decided.ID.String()))
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Failed to persist loan decision", slog.String("loanID", decided.ID.String()), slog.Any("error", err))
		return nil, fmt.Errorf("failed to save decision: %w", err)
	}

	monitoring.RecordLoanDecision(string(decided.Status))
	s.logger.InfoContext(ctx, "Loan decided",
		slog.String("loanID", decided.ID.String()),
		slog.String("status", string(decided.Status)),
		slog.Float64("score", score),
		slog.Float64("limit", limit),
	)

	evt := event.LoanDecidedEvent{
		Timestamp:      time.Now(),
		LoanID:         decided.ID.String(),
		CustomerNumber: decided.CustomerNumber,
		Status:         string(decided.Status),
		Score:          score,
		Limit:          limit,
	}
	if decided.RejectionReason != nil {
		evt.RejectionReason = *decided.RejectionReason
	}
	if err := s.pub.PublishLoanDecided(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish loan decided event", slog.Any("error", err))
	}

	return &decided, nil
}
