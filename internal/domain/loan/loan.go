package loan

import (
	"fmt"
	"math"
	"time"

	"loan-origination/internal/pkg/apperrors"

	"github.com/google/uuid"
)

type Money = float64

type LoanStatus string

const (
	StatusPending  LoanStatus = "PENDING"
	StatusApproved LoanStatus = "APPROVED"
	StatusRejected LoanStatus = "REJECTED"
	// StatusActive is reserved for disbursed loans. Nothing in origination
	// sets it, but it still blocks new applications.
	StatusActive LoanStatus = "ACTIVE"
)

// ActiveStatuses block a customer from opening another application.
var ActiveStatuses = []LoanStatus{StatusPending, StatusApproved, StatusActive}

func (s LoanStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s LoanStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusActive:
		return true
	}
	return false
}

const (
	ScoreThreshold = 700.0

	// MaxAmount is the largest amount the loans table's NUMERIC(15,2) column holds.
	MaxAmount Money = 9999999999999.99

	ReasonScoreTooLow        = "Credit score too low"
	ReasonAmountExceedsLimit = "Requested amount exceeds approved limit"
)

type Decision struct {
	Status          LoanStatus
	RejectionReason string
}

// Decide applies the approval policy: a score of at least ScoreThreshold and a
// limit covering the requested amount approves; otherwise the first failing
// rule, checked score first, names the rejection reason.
func Decide(amount Money, score, limit float64) Decision {
	if score >= ScoreThreshold && limit >= amount {
		return Decision{Status: StatusApproved}
	}
	if score < ScoreThreshold {
		return Decision{Status: StatusRejected, RejectionReason: ReasonScoreTooLow}
	}
	return Decision{Status: StatusRejected, RejectionReason: ReasonAmountExceedsLimit}
}

type Loan struct {
	ID              uuid.UUID
	CustomerID      int64
	CustomerNumber  string
	Amount          Money
	Status          LoanStatus
	Score           *float64
	Limit           *float64
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewLoan(customerID int64, customerNumber string, amount Money) (*Loan, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Loan{
		ID:             uuid.New(),
		CustomerID:     customerID,
		CustomerNumber: customerNumber,
		Amount:         amount,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func ValidateAmount(amount Money) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidAmount, apperrors.NewValidationError("amount", "amount must be a positive number"))
	}
	if amount > MaxAmount {
		return fmt.Errorf("%w: %w", ErrInvalidAmount, apperrors.NewValidationError("amount", "amount exceeds the maximum of 9999999999999.99"))
	}
	return nil
}

// ValidateScore rejects values no scoring engine could have produced.
func ValidateScore(score, limit float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return apperrors.NewValidationError("score", "score must be a finite number")
	}
	if math.IsNaN(limit) || math.IsInf(limit, 0) {
		return apperrors.NewValidationError("limit", "limit must be a finite number")
	}
	return nil
}

// Decide records the scoring result and the policy outcome on a PENDING loan.
func (l *Loan) Decide(score, limit float64) error {
	if l.Status != StatusPending {
		return fmt.Errorf("%w: loan %s is %s", ErrNoPendingLoan, l.ID, l.Status)
	}
	d := Decide(l.Amount, score, limit)

	l.Score = &score
	l.Limit = &limit
	l.Status = d.Status
	if d.RejectionReason != "" {
		reason := d.RejectionReason
		l.RejectionReason = &reason
	} else {
		l.RejectionReason = nil
	}
	l.UpdatedAt = time.Now().UTC()
	return nil
}
