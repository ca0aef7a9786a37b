package handler

import (
	"context"
	"log/slog"
	"net/http"

	"loan-origination/internal/api/handler/dto"
	"loan-origination/internal/domain/scoring"
	"loan-origination/internal/infrastructure/gateway"
)

// ScoringGateway is the synchronous face of the scoring engine.
type ScoringGateway interface {
	RequestScore(ctx context.Context, customerNumber string) *gateway.ScoreResult
	RegisterClient(ctx context.Context, reg gateway.ClientRegistration) *gateway.RegistrationResult
	TestConnection(ctx context.Context) bool
	BaseURL() string
}

type ScoringHandler struct {
	service scoring.ScoringService
	gateway ScoringGateway
	logger  *slog.Logger
}

func NewScoringHandler(s scoring.ScoringService, gw ScoringGateway, l *slog.Logger) *ScoringHandler {
	if s == nil || gw == nil {
		panic("scoring handler dependencies cannot be nil")
	}
	return &ScoringHandler{
		service: s,
		gateway: gw,
		logger:  l.With("component", "ScoringHandler"),
	}
}

// InitiateScore handles POST /scores
// @Summary Start a score query
// @Description Issues a correlation token and asks the scoring engine to score the customer.
// @Tags Scoring
// @Accept json
// @Produce json
// @Param request body dto.InitiateScoreRequest true "Customer to score"
// @Success 200 {object} dto.ScoreTokenResponse
// @Failure 404 {object} dto.ErrorResponse "Customer not subscribed"
// @Failure 502 {object} dto.ErrorResponse "Scoring engine unreachable"
// @Router /scores [post]
// @Security BearerAuth
func (h *ScoringHandler) InitiateScore(w http.ResponseWriter, r *http.Request) {
	var req dto.InitiateScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	token, err := h.service.InitiateScoreQuery(r.Context(), req.CustomerNumber)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Score query not started", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ScoreTokenResponse{Token: token})
}

// GetScore handles GET /scores/{customerNumber}
// @Summary Fetch a score directly
// @Description Falls back to a neutral score flagged isFallback when the engine cannot be reached.
// @Tags Scoring
// @Produce json
// @Param customerNumber path string true "Customer number"
// @Success 200 {object} gateway.ScoreResult
// @Router /scores/{customerNumber} [get]
// @Security BearerAuth
func (h *ScoringHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	number, err := customerNumberFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.gateway.RequestScore(r.Context(), number))
}

// RegisterClient handles POST /scoring/clients
// @Summary Register this service with the scoring engine
// @Tags Scoring
// @Accept json
// @Produce json
// @Param request body dto.RegisterClientRequest true "Callback endpoint and credentials"
// @Success 200 {object} gateway.RegistrationResult
// @Failure 400 {object} gateway.RegistrationResult "Missing fields"
// @Failure 502 {object} gateway.RegistrationResult "Registration failed after retries"
// @Router /scoring/clients [post]
// @Security BearerAuth
func (h *ScoringHandler) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterClientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	reg := req.ToRegistration()
	result := h.gateway.RegisterClient(r.Context(), reg)
	switch {
	case result.Success:
		h.logger.InfoContext(r.Context(), "Registered with scoring engine", slog.String("name", reg.Name))
		respondJSON(w, http.StatusOK, result)
	case len(reg.MissingFields()) > 0:
		respondJSON(w, http.StatusBadRequest, result)
	default:
		h.logger.ErrorContext(r.Context(), "Client registration failed", slog.String("error", result.Error))
		respondJSON(w, http.StatusBadGateway, result)
	}
}

// ScoreCallback handles POST /scoring/callback
// @Summary Receive a score from the scoring engine
// @Description Decides the customer's pending loan. Protected with HTTP basic auth.
// @Tags Scoring
// @Accept json
// @Produce json
// @Param request body dto.ScoreCallbackRequest true "Score result"
// @Success 200 {object} dto.ScoreCallbackResponse
// @Failure 400 {object} dto.ErrorResponse "Malformed payload"
// @Failure 404 {object} dto.ErrorResponse "No pending loan"
// @Failure 409 {object} dto.ErrorResponse "Unknown or consumed token"
// @Router /scoring/callback [post]
func (h *ScoringHandler) ScoreCallback(w http.ResponseWriter, r *http.Request) {
	var req dto.ScoreCallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	decided, err := h.service.ProcessScoreCallback(r.Context(), req.Token, *req.Score, *req.Limit)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Score callback rejected", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewScoreCallbackResponse(decided))
}

// ScoringHealth handles GET /health/scoring
// @Summary Check scoring engine connectivity
// @Tags Health
// @Produce json
// @Success 200 {object} dto.ScoringHealthResponse
// @Router /health/scoring [get]
func (h *ScoringHandler) ScoringHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, dto.ScoringHealthResponse{
		Connected: h.gateway.TestConnection(r.Context()),
		URL:       h.gateway.BaseURL(),
	})
}
