package loan

import (
	"context"
	"fmt"

	"loan-origination/internal/pkg/apperrors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = fmt.Errorf("%w: loan not found", apperrors.ErrNotFound)

	ErrCustomerNotSubscribed = fmt.Errorf("%w: customer not subscribed", apperrors.ErrNotFound)

	ErrActiveLoanExists = fmt.Errorf("%w: customer already has an active loan", apperrors.ErrConflict)

	ErrNoPendingLoan = fmt.Errorf("%w: no pending loan", apperrors.ErrNotFound)

	ErrInvalidAmount = fmt.Errorf("%w: invalid loan amount", apperrors.ErrValidation)
)

type Repository interface {
	// Create stores a new PENDING loan. It fails with ErrActiveLoanExists if
	// the customer already holds a loan in an active status.
	Create(ctx context.Context, loan *Loan) error

	GetByID(ctx context.Context, loanID uuid.UUID) (*Loan, error)

	HasActiveLoan(ctx context.Context, customerID int64) (bool, error)

	FindPendingByCustomer(ctx context.Context, customerID int64) (*Loan, error)

	// SaveDecision persists status, score, limit and reason, but only while
	// the stored loan is still PENDING. Otherwise it returns ErrNoPendingLoan.
	SaveDecision(ctx context.Context, loan *Loan) error
}
