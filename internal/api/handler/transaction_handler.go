package handler

import (
	"context"
	"log/slog"
	"net/http"

	"loan-origination/internal/infrastructure/gateway"
)

// TransactionSource returns a customer's transaction summary. It never
// fails; unavailable data comes back flagged as fallback.
type TransactionSource interface {
	FetchTransactions(ctx context.Context, customerNumber string) *gateway.TransactionData
}

type TransactionHandler struct {
	source TransactionSource
	logger *slog.Logger
}

func NewTransactionHandler(s TransactionSource, l *slog.Logger) *TransactionHandler {
	if s == nil {
		panic("transaction source cannot be nil")
	}
	return &TransactionHandler{
		source: s,
		logger: l.With("component", "TransactionHandler"),
	}
}

// GetTransactions handles GET /transactions/{customerNumber}
// @Summary Transaction history for scoring
// @Description Called by the scoring engine with the credentials registered for it. Serves placeholder data flagged isFallback when core banking is unreachable.
// @Tags Scoring
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {object} gateway.TransactionData
// @Failure 400 {object} dto.ErrorResponse "Missing customer number"
// @Failure 401 {object} dto.ErrorResponse "Bad credentials"
// @Router /transactions/{customerNumber} [get]
// @Security BasicAuth
func (h *TransactionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	number, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	data := h.source.FetchTransactions(r.Context(), number)
	if data.Fallback {
		h.logger.InfoContext(r.Context(), "Serving fallback transaction data", slog.String("customerNumber", number))
	}
	respondJSON(w, http.StatusOK, data)
}
