package scoring

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"loan-origination/internal/pkg/apperrors"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrInvalidToken = fmt.Errorf("%w: invalid token", apperrors.ErrConflict)

	ErrTokenStoreFull = fmt.Errorf("%w: too many outstanding score queries", apperrors.ErrUpstream)

	errTokenCollision = fmt.Errorf("%w: score token already registered", apperrors.ErrConflict)
)

// TokenRecord ties an outstanding score query to the customer it was issued for.
type TokenRecord struct {
	Token          string    `json:"token"`
	CustomerNumber string    `json:"customerNumber"`
	IssuedAt       time.Time `json:"issuedAt"`
}

// TokenStore holds outstanding score-query tokens. A token resolves until it
// is consumed, discarded or expires; Consume succeeds at most once per token.
type TokenStore interface {
	Register(ctx context.Context, rec TokenRecord) error
	Resolve(ctx context.Context, token string) (TokenRecord, error)
	Consume(ctx context.Context, token string) error
	Discard(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Len(ctx context.Context) (int, error)
}

type MemoryTokenStore struct {
	tokens *xsync.MapOf[string, TokenRecord]
	// count includes slots reserved by in-flight Register calls so the
	// capacity check and the insert cannot interleave.
	count    atomic.Int64
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore returns a process-local store. capacity <= 0 means
// unbounded and ttl <= 0 means tokens never expire.
func NewMemoryTokenStore(capacity int, ttl time.Duration) *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens:   xsync.NewMapOf[string, TokenRecord](),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryTokenStore) Register(_ context.Context, rec TokenRecord) error {
	if n := s.count.Add(1); s.capacity > 0 && n > int64(s.capacity) {
		s.count.Add(-1)
		return ErrTokenStoreFull
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = s.now()
	}
	if _, loaded := s.tokens.LoadOrStore(rec.Token, rec); loaded {
		s.count.Add(-1)
		return errTokenCollision
	}
	return nil
}

func (s *MemoryTokenStore) Resolve(_ context.Context, token string) (TokenRecord, error) {
	rec, ok := s.tokens.Load(token)
	if !ok {
		return TokenRecord{}, ErrInvalidToken
	}
	if s.expired(rec, s.now()) {
		s.remove(token)
		return TokenRecord{}, ErrInvalidToken
	}
	return rec, nil
}

func (s *MemoryTokenStore) Consume(_ context.Context, token string) error {
	if !s.remove(token) {
		return ErrInvalidToken
	}
	return nil
}

func (s *MemoryTokenStore) Discard(_ context.Context, token string) error {
	s.remove(token)
	return nil
}

func (s *MemoryTokenStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	purged := 0
	s.tokens.Range(func(token string, rec TokenRecord) bool {
		if s.expired(rec, now) && s.remove(token) {
			purged++
		}
		return true
	})
	return purged, nil
}

func (s *MemoryTokenStore) Len(context.Context) (int, error) {
	return s.tokens.Size(), nil
}

// remove releases the token's capacity slot only if this call deleted it.
func (s *MemoryTokenStore) remove(token string) bool {
	if _, ok := s.tokens.LoadAndDelete(token); ok {
		s.count.Add(-1)
		return true
	}
	return false
}

func (s *MemoryTokenStore) expired(rec TokenRecord, now time.Time) bool {
	return s.ttl > 0 && now.Sub(rec.IssuedAt) > s.ttl
}
