package dto

import (
	"strings"

	"loan-origination/internal/domain/loan"
	"loan-origination/internal/infrastructure/gateway"
	"loan-origination/internal/pkg/apperrors"
)

type InitiateScoreRequest struct {
	CustomerNumber string `json:"customerNumber" example:"234774784"`
}

func (r *InitiateScoreRequest) Validate() error {
	if strings.TrimSpace(r.CustomerNumber) == "" {
		return apperrors.NewValidationError("customerNumber", "customerNumber is required")
	}
	return nil
}

type ScoreTokenResponse struct {
	Token string `json:"token"`
}

// ScoreCallbackRequest is what the scoring engine posts back. Score and
// limit are pointers so a missing field is told apart from zero.
type ScoreCallbackRequest struct {
	Token string   `json:"token"`
	Score *float64 `json:"score"`
	Limit *float64 `json:"limit"`
}

func (r *ScoreCallbackRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Token) == "":
		return apperrors.NewValidationError("token", "token is required")
	case r.Score == nil:
		return apperrors.NewValidationError("score", "score is required")
	case r.Limit == nil:
		return apperrors.NewValidationError("limit", "limit is required")
	}
	return nil
}

type ScoreCallbackResponse struct {
	LoanID string `json:"loanId"`
	Status string `json:"status"`
}

func NewScoreCallbackResponse(l *loan.Loan) ScoreCallbackResponse {
	return ScoreCallbackResponse{LoanID: l.ID.String(), Status: string(l.Status)}
}

type RegisterClientRequest struct {
	URL      string `json:"url" example:"https://lms.example.com/transactions"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *RegisterClientRequest) ToRegistration() gateway.ClientRegistration {
	return gateway.ClientRegistration{URL: r.URL, Name: r.Name, Username: r.Username, Password: r.Password}
}

type ScoringHealthResponse struct {
	Connected bool   `json:"connected"`
	URL       string `json:"url"`
}
