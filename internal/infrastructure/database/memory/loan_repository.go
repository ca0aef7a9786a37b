package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loan-origination/internal/domain/loan"
	"loan-origination/internal/pkg/apperrors"

	"github.com/google/uuid"
)

type LoanRepository struct {
	mu    sync.RWMutex
	loans map[uuid.UUID]loan.Loan
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository() *LoanRepository {
	return &LoanRepository{loans: make(map[uuid.UUID]loan.Loan)}
}

func (r *LoanRepository) Create(_ context.Context, l *loan.Loan) error {
	if l == nil {
		return fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.loans[l.ID]; exists {
		return fmt.Errorf("%w: loans_pkey", apperrors.ErrAlreadyExists)
	}
	if l.Status.IsActive() && r.hasActiveLocked(l.CustomerID) {
		return loan.ErrActiveLoanExists
	}
	r.loans[l.ID] = cloneLoan(*l)
	return nil
}

func (r *LoanRepository) GetByID(_ context.Context, loanID uuid.UUID) (*loan.Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.loans[loanID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := cloneLoan(l)
	return &out, nil
}

func (r *LoanRepository) HasActiveLoan(_ context.Context, customerID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasActiveLocked(customerID), nil
}

func (r *LoanRepository) FindPendingByCustomer(_ context.Context, customerID int64) (*loan.Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.loans {
		if l.CustomerID == customerID && l.Status == loan.StatusPending {
			out := cloneLoan(l)
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *LoanRepository) SaveDecision(_ context.Context, l *loan.Loan) error {
	if l == nil {
		return fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.loans[l.ID]
	if !ok || stored.Status != loan.StatusPending {
		return fmt.Errorf("%w: loan %s", loan.ErrNoPendingLoan, l.ID)
	}
	stored.Status = l.Status
	stored.Score = l.Score
	stored.Limit = l.Limit
	stored.RejectionReason = l.RejectionReason
	stored.UpdatedAt = time.Now().UTC()
	r.loans[l.ID] = cloneLoan(stored)
	return nil
}

// SetStatus forces a status, e.g. to seed a disbursed ACTIVE loan.
func (r *LoanRepository) SetStatus(loanID uuid.UUID, status loan.LoanStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.loans[loanID]
	if !ok {
		return apperrors.ErrNotFound
	}
	l.Status = status
	r.loans[loanID] = l
	return nil
}

func (r *LoanRepository) hasActiveLocked(customerID int64) bool {
	for _, l := range r.loans {
		if l.CustomerID == customerID && l.Status.IsActive() {
			return true
		}
	}
	return false
}

func cloneLoan(l loan.Loan) loan.Loan {
	if l.Score != nil {
		v := *l.Score
		l.Score = &v
	}
	if l.Limit != nil {
		v := *l.Limit
		l.Limit = &v
	}
	if l.RejectionReason != nil {
		v := *l.RejectionReason
		l.RejectionReason = &v
	}
	return l
}
