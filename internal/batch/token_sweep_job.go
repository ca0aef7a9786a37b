package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loan-origination/internal/domain/scoring"
	"loan-origination/internal/infrastructure/monitoring"
)

// TokenSweepJob retires score tokens whose callback never arrived.
type TokenSweepJob struct {
	store  scoring.TokenStore
	now    func() time.Time
	logger *slog.Logger
}

func NewTokenSweepJob(store scoring.TokenStore, logger *slog.Logger) *TokenSweepJob {
	if store == nil || logger == nil {
		panic("TokenSweepJob dependencies cannot be nil")
	}
	return &TokenSweepJob{
		store:  store,
		now:    time.Now,
		logger: logger.With("job", "TokenSweep"),
	}
}

func (j *TokenSweepJob) Run(ctx context.Context) error {
	startTime := j.now()

	purged, err := j.store.PurgeExpired(ctx, startTime)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to purge expired score tokens", slog.Any("error", err))
		return fmt.Errorf("token sweep failed: %w", err)
	}

	remaining, err := j.store.Len(ctx)
	if err != nil {
		j.logger.WarnContext(ctx, "Could not count outstanding score tokens", slog.Any("error", err))
	} else {
		monitoring.SetOutstandingScoreTokens(remaining)
	}

	logCtx := j.logger.With(
		slog.Int("purged", purged),
		slog.Int("outstanding", remaining),
		slog.Duration("duration", time.Since(startTime)),
	)
	if purged > 0 {
		logCtx.InfoContext(ctx, "Expired score tokens purged")
	} else {
		logCtx.DebugContext(ctx, "No expired score tokens")
	}
	return nil
}
