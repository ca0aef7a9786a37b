package dto

import (
	"strings"
	"time"

	"loan-origination/internal/domain/loan"
	"loan-origination/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

var maxAmount = decimal.RequireFromString("9999999999999.99")

// CreateLoanRequest accepts the amount as a JSON number or a decimal string.
type CreateLoanRequest struct {
	CustomerNumber string          `json:"customerNumber" example:"234774784"`
	Amount         decimal.Decimal `json:"amount" swaggertype:"string" example:"5000.00"`
}

func (r *CreateLoanRequest) Validate() error {
	if strings.TrimSpace(r.CustomerNumber) == "" {
		return apperrors.NewValidationError("customerNumber", "customerNumber is required")
	}
	if !r.Amount.IsPositive() {
		return apperrors.NewValidationError("amount", "amount must be greater than zero")
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		return apperrors.NewValidationError("amount", "amount must have at most two decimal places")
	}
	if r.Amount.GreaterThan(maxAmount) {
		return apperrors.NewValidationError("amount", "amount exceeds the maximum of "+maxAmount.StringFixed(2))
	}
	return nil
}

func (r *CreateLoanRequest) AmountValue() loan.Money {
	return r.Amount.InexactFloat64()
}

type CreateLoanResponse struct {
	LoanID     string  `json:"loanId"`
	Status     string  `json:"status"`
	ScoreToken *string `json:"scoreToken,omitempty"`
}

func NewCreateLoanResponse(l *loan.Loan, scoreToken string) CreateLoanResponse {
	resp := CreateLoanResponse{LoanID: l.ID.String(), Status: string(l.Status)}
	if scoreToken != "" {
		resp.ScoreToken = &scoreToken
	}
	return resp
}

type LoanResponse struct {
	LoanID          string    `json:"loanId"`
	CustomerID      int64     `json:"customerId"`
	CustomerNumber  string    `json:"customerNumber"`
	Amount          string    `json:"amount" example:"5000.00"`
	Status          string    `json:"status" example:"PENDING"`
	Score           *float64  `json:"score,omitempty"`
	Limit           *string   `json:"limit,omitempty"`
	RejectionReason *string   `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	if l == nil {
		return LoanResponse{}
	}
	resp := LoanResponse{
		LoanID:          l.ID.String(),
		CustomerID:      l.CustomerID,
		CustomerNumber:  l.CustomerNumber,
		Amount:          formatMoney(l.Amount),
		Status:          string(l.Status),
		Score:           l.Score,
		RejectionReason: l.RejectionReason,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if l.Limit != nil {
		limit := formatMoney(*l.Limit)
		resp.Limit = &limit
	}
	return resp
}

func formatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
