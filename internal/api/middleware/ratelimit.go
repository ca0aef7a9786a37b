package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"loan-origination/internal/config"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 10 * time.Minute
	rateLimitedBody      = `{"error":{"code":"RATE_LIMITED","message":"Rate limit exceeded"}}`
)

// RateLimiterMiddleware applies a token bucket per client IP.
type RateLimiterMiddleware struct {
	limiters *xsync.MapOf[string, *rate.Limiter]
	cfg      config.RateLimitConfig
	logger   *slog.Logger
	done     chan struct{}
}

func NewRateLimiterMiddleware(cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiterMiddleware {
	rl := &RateLimiterMiddleware{
		limiters: xsync.NewMapOf[string, *rate.Limiter](),
		cfg:      cfg,
		logger:   logger.With("component", "RateLimiter"),
		done:     make(chan struct{}),
	}
	if cfg.Enabled {
		go rl.sweep(limiterSweepInterval)
	}
	return rl
}

// Stop ends the idle limiter sweep.
func (rl *RateLimiterMiddleware) Stop() {
	select {
	case <-rl.done:
	default:
		close(rl.done)
	}
}

func (rl *RateLimiterMiddleware) limiterFor(ip string) *rate.Limiter {
	limiter, _ := rl.limiters.LoadOrCompute(ip, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)
	})
	return limiter
}

// sweep drops limiters whose bucket has fully refilled.
func (rl *RateLimiterMiddleware) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.limiters.Range(func(ip string, limiter *rate.Limiter) bool {
				if limiter.TokensAt(now) >= float64(rl.cfg.Burst) {
					rl.limiters.Delete(ip)
				}
				return true
			})
		}
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xRealIP := r.Header.Get("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.limiterFor(ip).Allow() {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(rateLimitedBody))
			return
		}
		next.ServeHTTP(w, r)
	})
}
