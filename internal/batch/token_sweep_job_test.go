package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"loan-origination/internal/batch"
	"loan-origination/internal/domain/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Register(ctx context.Context, rec scoring.TokenRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockTokenStore) Resolve(ctx context.Context, token string) (scoring.TokenRecord, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(scoring.TokenRecord), args.Error(1)
}

func (m *MockTokenStore) Consume(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockTokenStore) Discard(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockTokenStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *MockTokenStore) Len(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokenSweepJob_PurgesExpiredTokens(t *testing.T) {
	ctx := context.Background()
	store := scoring.NewMemoryTokenStore(0, time.Minute)
	require.NoError(t, store.Register(ctx, scoring.TokenRecord{Token: "stale", CustomerNumber: "1", IssuedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, store.Register(ctx, scoring.TokenRecord{Token: "fresh", CustomerNumber: "2", IssuedAt: time.Now()}))

	job := batch.NewTokenSweepJob(store, discardLogger())
	require.NoError(t, job.Run(ctx))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Resolve(ctx, "stale")
	assert.ErrorIs(t, err, scoring.ErrInvalidToken)
	rec, err := store.Resolve(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "2", rec.CustomerNumber)
}

func TestTokenSweepJob_PurgeFailure(t *testing.T) {
	store := new(MockTokenStore)
	store.On("PurgeExpired", mock.Anything, mock.AnythingOfType("time.Time")).Return(0, errors.New("redis down"))

	err := batch.NewTokenSweepJob(store, discardLogger()).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "token sweep failed")
	store.AssertNotCalled(t, "Len", mock.Anything)
}

func TestTokenSweepJob_LenFailureIsNotFatal(t *testing.T) {
	store := new(MockTokenStore)
	store.On("PurgeExpired", mock.Anything, mock.AnythingOfType("time.Time")).Return(3, nil)
	store.On("Len", mock.Anything).Return(0, errors.New("redis down"))

	assert.NoError(t, batch.NewTokenSweepJob(store, discardLogger()).Run(context.Background()))
	store.AssertExpectations(t)
}

func TestNewTokenSweepJob_PanicsOnNilStore(t *testing.T) {
	assert.Panics(t, func() { batch.NewTokenSweepJob(nil, discardLogger()) })
}
