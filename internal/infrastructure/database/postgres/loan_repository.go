package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loan-origination/internal/domain/loan"
	"loan-origination/internal/pkg/apperrors"

	"github.com/google/uuid"
)

// activeLoanIndex is the partial unique index allowing one active loan per customer.
const activeLoanIndex = "loans_one_active_per_customer"

const loanSelect = `
        SELECT l.loan_id, l.customer_id, c.customer_number, l.amount, l.status,
               l.score, l.loan_limit, l.rejection_reason, l.created_at, l.updated_at
        FROM loans l
        JOIN customers c ON c.id = l.customer_id`

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	if db == nil {
		panic("DBPool cannot be nil for LoanRepository")
	}
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	if l == nil {
		return fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}
	query := `
        INSERT INTO loans (loan_id, customer_id, amount, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	start := time.Now()
	_, err := r.db.Exec(ctx, query, l.ID, l.CustomerID, l.Amount, string(l.Status), l.CreatedAt, l.UpdatedAt)
	recordQuery("CreateLoan", start, err)

	if err != nil {
		switch code, constraint := pgErrorCode(err); {
		case code == pgUniqueViolation && constraint == activeLoanIndex:
			r.logger.WarnContext(ctx, "Active loan already exists", "customer_id", l.CustomerID)
			return loan.ErrActiveLoanExists
		case code == pgForeignKeyViolation:
			return fmt.Errorf("%w: customer id %d", loan.ErrCustomerNotSubscribed, l.CustomerID)
		}
		return translateDBError(err, r.logger.With("loan_id", l.ID))
	}
	r.logger.InfoContext(ctx, "Loan inserted", "loan_id", l.ID, "customer_id", l.CustomerID)
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, loanID uuid.UUID) (*loan.Loan, error) {
	query := loanSelect + ` WHERE l.loan_id = $1`

	start := time.Now()
	l, err := scanLoan(r.db.QueryRow(ctx, query, loanID))
	recordQuery("GetLoanByID", start, err)

	if err != nil {
		return nil, translateDBError(err, r.logger.With("loan_id", loanID))
	}
	return l, nil
}

func (r *LoanRepository) HasActiveLoan(ctx context.Context, customerID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM loans WHERE customer_id = $1 AND status = ANY($2))`

	start := time.Now()
	var exists bool
	err := r.db.QueryRow(ctx, query, customerID, activeStatusNames()).Scan(&exists)
	recordQuery("HasActiveLoan", start, err)

	if err != nil {
		return false, translateDBError(err, r.logger.With("customer_id", customerID))
	}
	return exists, nil
}

func (r *LoanRepository) FindPendingByCustomer(ctx context.Context, customerID int64) (*loan.Loan, error) {
	query := loanSelect + ` WHERE l.customer_id = $1 AND l.status = $2 ORDER BY l.created_at DESC LIMIT 1`

	start := time.Now()
	l, err := scanLoan(r.db.QueryRow(ctx, query, customerID, string(loan.StatusPending)))
	recordQuery("FindPendingLoanByCustomer", start, err)

	if err != nil {
		return nil, translateDBError(err, r.logger.With("customer_id", customerID))
	}
	return l, nil
}

func (r *LoanRepository) SaveDecision(ctx context.Context, l *loan.Loan) error {
	if l == nil {
		return fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}
	query := `
        UPDATE loans
        SET status = $2, score = $3, loan_limit = $4, rejection_reason = $5, updated_at = NOW()
        WHERE loan_id = $1 AND status = $6`

	start := time.Now()
	tag, err := r.db.Exec(ctx, query, l.ID, string(l.Status), l.Score, l.Limit, l.RejectionReason, string(loan.StatusPending))
	recordQuery("SaveLoanDecision", start, err)

	if err != nil {
		return translateDBError(err, r.logger.With("loan_id", l.ID))
	}
	if tag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Decision not applied, loan no longer pending", "loan_id", l.ID)
		return fmt.Errorf("%w: loan %s", loan.ErrNoPendingLoan, l.ID)
	}
	return nil
}

func scanLoan(row rowScanner) (*loan.Loan, error) {
	var (
		l      loan.Loan
		status string
	)
	err := row.Scan(&l.ID, &l.CustomerID, &l.CustomerNumber, &l.Amount, &status,
		&l.Score, &l.Limit, &l.RejectionReason, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = loan.LoanStatus(status)
	if !l.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown loan status %q", apperrors.ErrDatabase, status)
	}
	return &l, nil
}

func activeStatusNames() []string {
	names := make([]string, 0, len(loan.ActiveStatuses))
	for _, s := range loan.ActiveStatuses {
		names = append(names, string(s))
	}
	return names
}

