package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"loan-origination/internal/api/handler/dto"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a backing dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]ReadinessCheck
	logger *slog.Logger
}

func NewHealthHandler(checks map[string]ReadinessCheck, l *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: l.With("component", "HealthHandler"),
	}
}

// Health handles GET /health
// @Summary Service readiness
// @Description Pings every configured backing store. Any failure turns the answer into 503.
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := dto.HealthResponse{Status: dto.HealthOK}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			h.logger.WarnContext(r.Context(), "Readiness check failed", slog.String("dependency", name), slog.Any("error", err))
			resp.Checks[name] = err.Error()
			resp.Status = dto.HealthUnavailable
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = dto.HealthOK
	}
	respondJSON(w, status, resp)
}
