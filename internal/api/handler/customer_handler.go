package handler

import (
	"log/slog"
	"net/http"

	"loan-origination/internal/api/handler/dto"
	"loan-origination/internal/domain/customer"
	"loan-origination/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

type CustomerHandler struct {
	service customer.CustomerService
	logger  *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	return &CustomerHandler{
		service: s,
		logger:  l.With("component", "CustomerHandler"),
	}
}

func customerNumberFromURL(r *http.Request) (string, error) {
	n := customer.NormalizeNumber(chi.URLParam(r, "customerNumber"))
	if n == "" {
		return "", apperrors.NewValidationError("customerNumber", "customerNumber is required in the path")
	}
	return n, nil
}

// Subscribe handles POST /subscriptions
// @Summary Subscribe a banking customer
// @Description Fetches the customer's KYC profile from the core banking system and registers the customer for lending.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.SubscribeRequest true "Customer to subscribe"
// @Success 201 {object} dto.SubscribeResponse
// @Failure 400 {object} dto.ErrorResponse "Missing customer number"
// @Failure 409 {object} dto.ErrorResponse "Customer already subscribed"
// @Failure 502 {object} dto.ErrorResponse "KYC retrieval failed"
// @Router /subscriptions [post]
// @Security BearerAuth
func (h *CustomerHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req dto.SubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	cust, err := h.service.Subscribe(r.Context(), req.CustomerNumber)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Subscription failed", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.SubscribeResponse{CustomerID: cust.CustomerID})
}

// GetCustomer handles GET /customers/{customerNumber}
// @Summary Look up a subscribed customer
// @Tags Customers
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {object} dto.CustomerResponse
// @Failure 404 {object} dto.ErrorResponse "Customer not subscribed"
// @Router /customers/{customerNumber} [get]
// @Security BearerAuth
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	number, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	cust, err := h.service.FindByNumber(r.Context(), number)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Customer lookup failed", slog.String("customerNumber", number), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(cust))
}

// RefreshKYC handles PUT /customers/{customerNumber}/kyc
// @Summary Refresh a customer's KYC snapshot
// @Tags Customers
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {object} dto.CustomerResponse
// @Failure 404 {object} dto.ErrorResponse "Customer not subscribed"
// @Failure 502 {object} dto.ErrorResponse "KYC retrieval failed"
// @Router /customers/{customerNumber}/kyc [put]
// @Security BearerAuth
func (h *CustomerHandler) RefreshKYC(w http.ResponseWriter, r *http.Request) {
	number, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	cust, err := h.service.RefreshKYC(r.Context(), number)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "KYC refresh failed", slog.String("customerNumber", number), slog.Any("error", err))
		respondError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "KYC refreshed", slog.String("customerNumber", number))
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(cust))
}
