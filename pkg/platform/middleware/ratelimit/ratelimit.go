// Package ratelimit caps request rates per client address with token buckets
// from golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"attestor/pkg/platform/httputil"
	"attestor/pkg/platform/privacy"
	"attestor/pkg/requestcontext"
)

// Config sets the sustained rate and burst allowed per client.
type Config struct {
	RequestsPerMinute int
	Burst             int
	// IdleTTL evicts buckets for clients not seen within the window.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one bucket per client IP.
type Limiter struct {
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

func New(cfg Config, logger *slog.Logger) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &Limiter{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(l.cfg.RequestsPerMinute)/60.0), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Sweep drops buckets idle past IdleTTL. Returns the number removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleTTL)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests over the per-client rate with 429.
// A zero RequestsPerMinute disables limiting.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l.cfg.RequestsPerMinute <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		if ip == "" {
			ip = "unknown"
		}

		lim := l.limiterFor(ip)
		now := l.now()
		res := lim.ReserveN(now, 1)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.RequestsPerMinute))

		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			retryAfter := int(math.Ceil(delay.Seconds()))
			l.logger.WarnContext(ctx, "rate limit exceeded",
				"path", r.URL.Path,
				"remote_addr_prefix", privacy.AnonymizeIP(ip),
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
				Error: "too many requests, retry in " + strconv.Itoa(retryAfter) + "s",
				Kind:  "rate_limit_exceeded",
			})
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(lim.TokensAt(now))))
		next.ServeHTTP(w, r)
	})
}

// RunSweeper calls Sweep every interval until ctx is canceled.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.DebugContext(ctx, "rate limit buckets swept", "removed", n)
			}
		}
	}
}
