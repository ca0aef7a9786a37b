package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"loan-origination/internal/api/handler/dto"
	"loan-origination/internal/pkg/apperrors"
)

const maxRequestBody = 1 << 20

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("%w: no request body", apperrors.ErrInvalidArgument)
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", apperrors.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"code":"INTERNAL","message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func statusForKind(kind string) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindUpstream:
		return http.StatusBadGateway
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError never leaks internal error text; every other kind carries
// the wrapped message so clients can tell sentinels apart.
func respondError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	message := err.Error()
	if kind == apperrors.KindInternal {
		slog.Default().Error("Unhandled internal error", "error", err)
		message = "An unexpected error occurred."
	}

	respondJSON(w, statusForKind(kind), dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Code:    kind,
			Message: message,
			Field:   apperrors.FieldOf(err),
		},
	})
}

// logLevelFor keeps client mistakes out of the error log.
func logLevelFor(err error) slog.Level {
	switch apperrors.KindOf(err) {
	case apperrors.KindInternal, apperrors.KindUpstream:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
