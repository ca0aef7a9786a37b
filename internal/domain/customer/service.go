package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"loan-origination/internal/event"
	"loan-origination/internal/infrastructure/monitoring"
	"loan-origination/internal/pkg/apperrors"
)

type CustomerService interface {
	Subscribe(ctx context.Context, customerNumber string) (*Customer, error)
	FindByNumber(ctx context.Context, customerNumber string) (*Customer, error)
	RefreshKYC(ctx context.Context, customerNumber string) (*Customer, error)
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	kyc    KYCProvider
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, kyc KYCProvider, pub event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if kyc == nil {
		panic("kyc provider cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}
	if pub == nil {
		pub = event.NopPublisher{}
	}

	return &customerService{
		repo:   repo,
		kyc:    kyc,
		pub:    pub,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func (s *customerService) Subscribe(ctx context.Context, customerNumber string) (*Customer, error) {
	customerNumber = NormalizeNumber(customerNumber)
	if customerNumber == "" {
		return nil, apperrors.NewValidationError("customerNumber", "customer number is required")
	}
	logCtx := s.logger.With(slog.String("customerNumber", customerNumber))
	logCtx.InfoContext(ctx, "Attempting to subscribe customer")

	existing, err := s.repo.FindByNumber(ctx, customerNumber)
	switch {
	case err == nil && existing != nil:
		logCtx.WarnContext(ctx, "Customer already subscribed", slog.Int64("customerID", existing.CustomerID))
		return nil, ErrAlreadySubscribed
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		logCtx.ErrorContext(ctx, "Failed to look up customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to look up customer %s: %w", customerNumber, err)
	}

	snapshot, err := s.fetchSnapshot(ctx, customerNumber)
	if err != nil {
		logCtx.ErrorContext(ctx, "KYC retrieval failed", slog.Any("error", err))
		return nil, err
	}

	cust := NewCustomer(customerNumber, snapshot)
	if err := s.repo.Save(ctx, cust); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			logCtx.WarnContext(ctx, "Concurrent subscription won the race")
			return nil, ErrAlreadySubscribed
		}
		logCtx.ErrorContext(ctx, "Failed to save customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save customer %s: %w", customerNumber, err)
	}

	monitoring.RecordCustomerSubscribed()
	logCtx.InfoContext(ctx, "Customer subscribed", slog.Int64("customerID", cust.CustomerID))

	evt := event.CustomerSubscribedEvent{
		Timestamp:      time.Now(),
		CustomerID:     cust.CustomerID,
		CustomerNumber: cust.CustomerNumber,
	}
	if err := s.pub.PublishCustomerSubscribed(ctx, evt); err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish customer subscribed event", slog.Any("error", err))
	}

	return cust, nil
}

func (s *customerService) FindByNumber(ctx context.Context, customerNumber string) (*Customer, error) {
	customerNumber = NormalizeNumber(customerNumber)
	if customerNumber == "" {
		return nil, apperrors.NewValidationError("customerNumber", "customer number is required")
	}

	cust, err := s.repo.FindByNumber(ctx, customerNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to find customer", slog.String("customerNumber", customerNumber), slog.Any("error", err))
		return nil, fmt.Errorf("failed to find customer %s: %w", customerNumber, err)
	}
	return cust, nil
}

func (s *customerService) RefreshKYC(ctx context.Context, customerNumber string) (*Customer, error) {
	cust, err := s.FindByNumber(ctx, customerNumber)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.fetchSnapshot(ctx, cust.CustomerNumber)
	if err != nil {
		s.logger.WarnContext(ctx, "KYC refresh failed, keeping previous snapshot",
			slog.String("customerNumber", cust.CustomerNumber), slog.Any("error", err))
		return nil, err
	}

	cust.UpdateKYC(snapshot)
	if err := s.repo.Save(ctx, cust); err != nil {
		return nil, fmt.Errorf("failed to store refreshed kyc for %s: %w", cust.CustomerNumber, err)
	}
	s.logger.InfoContext(ctx, "KYC snapshot refreshed", slog.String("customerNumber", cust.CustomerNumber))
	return cust, nil
}

func (s *customerService) fetchSnapshot(ctx context.Context, customerNumber string) (json.RawMessage, error) {
	profile, err := s.kyc.FetchKYC(ctx, customerNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKycRetrievalFailed, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: empty profile for %s", ErrKycRetrievalFailed, customerNumber)
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKycRetrievalFailed, err)
	}
	return raw, nil
}
