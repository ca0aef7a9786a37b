package handler

import (
	"context"
	"log/slog"
	"net/http"

	"loan-origination/internal/api/handler/dto"
	"loan-origination/internal/domain/loan"
	"loan-origination/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// LoanScorer starts scoring for a freshly created loan.
type LoanScorer interface {
	ScoreLoan(ctx context.Context, l *loan.Loan) (string, error)
}

type LoanHandler struct {
	loans  loan.LoanService
	scorer LoanScorer
	logger *slog.Logger
}

func NewLoanHandler(loans loan.LoanService, scorer LoanScorer, l *slog.Logger) *LoanHandler {
	if loans == nil || scorer == nil {
		panic("loan handler dependencies cannot be nil")
	}
	return &LoanHandler{
		loans:  loans,
		scorer: scorer,
		logger: l.With("component", "LoanHandler"),
	}
}

func loanIDFromURL(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "loanID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NewValidationError("loanID", "loanID must be a UUID")
	}
	return id, nil
}

// CreateLoan handles POST /loans
// @Summary Apply for a loan
// @Description Creates a PENDING loan and starts a score query. If the query cannot be started the loan is still returned without a scoreToken; retry with POST /scores.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan application"
// @Success 201 {object} dto.CreateLoanResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid amount"
// @Failure 404 {object} dto.ErrorResponse "Customer not subscribed"
// @Failure 409 {object} dto.ErrorResponse "Customer already has an active loan"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	created, err := h.loans.CreateApplication(r.Context(), req.CustomerNumber, req.AmountValue())
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Loan application rejected", slog.Any("error", err))
		respondError(w, err)
		return
	}

	token, err := h.scorer.ScoreLoan(r.Context(), created)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Loan created but scoring not started",
			slog.String("loanID", created.ID.String()), slog.Any("error", err))
		token = ""
	}
	respondJSON(w, http.StatusCreated, dto.NewCreateLoanResponse(created, token))
}

// GetLoan handles GET /loans/{loanID}
// @Summary Get a loan
// @Tags Loans
// @Produce json
// @Param loanID path string true "Loan ID (UUID)"
// @Success 200 {object} dto.LoanResponse
// @Failure 400 {object} dto.ErrorResponse "Malformed loan ID"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	l, err := h.loans.GetByLoanID(r.Context(), id)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Loan lookup failed", slog.String("loanID", id.String()), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}
