// Package gateway holds the HTTP clients for the external scoring engine and
// the core banking (KYC) system.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxResponseBytes = 1 << 20

// RetryPolicy retries a failed call up to MaxAttempts times in total,
// sleeping BaseDelay*n after the n-th failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// linearBackOff grows the wait by BaseDelay on every retry.
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.base * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Do runs op until it succeeds, the attempt budget is spent or ctx ends. It
// reports how many attempts ran together with the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error, onRetry func(err error, wait time.Duration)) (int, error) {
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: p.BaseDelay}, uint64(p.attempts()-1)),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		attempt++
		return op(attempt)
	}, policy, onRetry)
	return attempt, err
}

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
