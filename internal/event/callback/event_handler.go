package callback

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"loan-origination/internal/domain/loan"
	"loan-origination/internal/pkg/apperrors"

	amqp "github.com/rabbitmq/amqp091-go"
)

type CallbackProcessor interface {
	ProcessScoreCallback(ctx context.Context, token string, score, limit float64) (*loan.Loan, error)
}

type ScoreCallbackHandler struct {
	processor CallbackProcessor
	logger    *slog.Logger
}

func NewScoreCallbackHandler(processor CallbackProcessor, logger *slog.Logger) *ScoreCallbackHandler {
	return &ScoreCallbackHandler{
		processor: processor,
		logger:    logger.With("component", "ScoreCallbackHandler"),
	}
}

// HandleDelivery acks decided callbacks and rejects ones that can never
// succeed. Transient failures are requeued once.
func (h *ScoreCallbackHandler) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	logCtx := h.logger.With(slog.Uint64("deliveryTag", d.DeliveryTag), slog.String("routingKey", d.RoutingKey))

	var msg ScoreResultMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		logCtx.ErrorContext(ctx, "Failed to unmarshal score callback", "error", err)
		_ = d.Reject(false)
		return
	}
	if msg.Token == "" || msg.Score == nil || msg.Limit == nil {
		logCtx.WarnContext(ctx, "Score callback missing token, score or limit")
		_ = d.Reject(false)
		return
	}

	decided, err := h.processor.ProcessScoreCallback(ctx, msg.Token, *msg.Score, *msg.Limit)
	if err != nil {
		if permanent(err) {
			logCtx.WarnContext(ctx, "Discarding score callback", "error", err, "kind", apperrors.KindOf(err))
			_ = d.Reject(false)
			return
		}
		logCtx.ErrorContext(ctx, "Score callback processing failed", "error", err, "redelivered", d.Redelivered)
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	if err := d.Ack(false); err != nil {
		logCtx.ErrorContext(ctx, "Failed to acknowledge score callback", "error", err)
		return
	}
	logCtx.InfoContext(ctx, "Score callback applied", "loanID", decided.ID.String(), "status", string(decided.Status))
}

func permanent(err error) bool {
	return errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrConflict)
}
