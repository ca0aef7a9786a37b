package customer

import (
	"context"
	"fmt"

	"loan-origination/internal/pkg/apperrors"
)

var (
	ErrNotFound = fmt.Errorf("%w: customer not found", apperrors.ErrNotFound)

	ErrAlreadySubscribed = fmt.Errorf("%w: customer already subscribed", apperrors.ErrConflict)

	ErrKycRetrievalFailed = fmt.Errorf("%w: kyc retrieval failed", apperrors.ErrUpstream)
)

type CustomerRepository interface {
	// Save inserts a new customer (CustomerID == 0) or updates an existing one.
	// Inserting a duplicate customer number yields apperrors.ErrAlreadyExists.
	Save(ctx context.Context, customer *Customer) error

	FindByNumber(ctx context.Context, customerNumber string) (*Customer, error)
}

// KYCProvider fetches a customer profile from the core banking system.
type KYCProvider interface {
	FetchKYC(ctx context.Context, customerNumber string) (*KYCSnapshot, error)
}
