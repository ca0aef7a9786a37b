package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"loan-origination/internal/domain/scoring"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "loan-origination:score-token:"
	tokenIndexKey  = "loan-origination:score-tokens"
)

// TokenStore keeps score tokens in Redis so callbacks can land on any
// instance. Each token is its own key with a native TTL; a sorted set scored
// by issue time backs Len and capacity checks.
type TokenStore struct {
	client   redis.UniversalClient
	capacity int
	ttl      time.Duration
}

var _ scoring.TokenStore = (*TokenStore)(nil)

func NewTokenStore(client redis.UniversalClient, capacity int, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, capacity: capacity, ttl: ttl}
}

func tokenKey(token string) string {
	return tokenKeyPrefix + token
}

func (s *TokenStore) Register(ctx context.Context, rec scoring.TokenRecord) error {
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}
	if s.capacity > 0 {
		n, err := s.client.ZCard(ctx, tokenIndexKey).Result()
		if err != nil {
			return fmt.Errorf("redis zcard: %w", err)
		}
		if n >= int64(s.capacity) {
			return scoring.ErrTokenStoreFull
		}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal token record: %w", err)
	}

	var setNX *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setNX = pipe.SetNX(ctx, tokenKey(rec.Token), payload, s.ttl)
		pipe.ZAdd(ctx, tokenIndexKey, redis.Z{Score: float64(rec.IssuedAt.UnixNano()), Member: rec.Token})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis register token: %w", err)
	}
	if !setNX.Val() {
		return fmt.Errorf("score token %s already registered", rec.Token)
	}
	return nil
}

func (s *TokenStore) Resolve(ctx context.Context, token string) (scoring.TokenRecord, error) {
	raw, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return scoring.TokenRecord{}, scoring.ErrInvalidToken
		}
		return scoring.TokenRecord{}, fmt.Errorf("redis get: %w", err)
	}

	var rec scoring.TokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return scoring.TokenRecord{}, fmt.Errorf("unmarshal token record: %w", err)
	}
	return rec, nil
}

func (s *TokenStore) Consume(ctx context.Context, token string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, tokenKey(token))
		pipe.ZRem(ctx, tokenIndexKey, token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis consume token: %w", err)
	}
	if del.Val() == 0 {
		return scoring.ErrInvalidToken
	}
	return nil
}

func (s *TokenStore) Discard(ctx context.Context, token string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tokenKey(token))
		pipe.ZRem(ctx, tokenIndexKey, token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis discard token: %w", err)
	}
	return nil
}

// PurgeExpired trims index entries whose keys Redis has already expired.
func (s *TokenStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := strconv.FormatInt(now.Add(-s.ttl).UnixNano(), 10)
	n, err := s.client.ZRemRangeByScore(ctx, tokenIndexKey, "-inf", "("+cutoff).Result()
	if err != nil {
		return 0, fmt.Errorf("redis purge tokens: %w", err)
	}
	return int(n), nil
}

func (s *TokenStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, tokenIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard: %w", err)
	}
	return int(n), nil
}
