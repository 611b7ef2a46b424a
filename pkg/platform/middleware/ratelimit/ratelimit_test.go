package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"attestor/pkg/requestcontext"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/attest", nil)
	req = req.WithContext(requestcontext.WithClientIP(req.Context(), ip))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("burst then 429 with Retry-After", func(t *testing.T) {
		l, _ := newTestLimiter(Config{RequestsPerMinute: 60, Burst: 2})
		h := l.Middleware(ok)

		assert.Equal(t, http.StatusOK, hit(h, "198.51.100.1").Code)
		assert.Equal(t, http.StatusOK, hit(h, "198.51.100.1").Code)
		w := hit(h, "198.51.100.1")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("clients are isolated", func(t *testing.T) {
		l, _ := newTestLimiter(Config{RequestsPerMinute: 60, Burst: 1})
		h := l.Middleware(ok)

		assert.Equal(t, http.StatusOK, hit(h, "198.51.100.1").Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(h, "198.51.100.1").Code)
		assert.Equal(t, http.StatusOK, hit(h, "198.51.100.2").Code)
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		l, now := newTestLimiter(Config{RequestsPerMinute: 60, Burst: 1})
		h := l.Middleware(ok)

		assert.Equal(t, http.StatusOK, hit(h, "198.51.100.1").Code)
		*now = now.Add(time.Second)
		assert.Equal(t, http.StatusOK, hit(h, "198.51.100.1").Code)
	})

	t.Run("zero rate disables limiting", func(t *testing.T) {
		l, _ := newTestLimiter(Config{})
		h := l.Middleware(ok)
		for i := 0; i < 10; i++ {
			assert.Equal(t, http.StatusOK, hit(h, "198.51.100.1").Code)
		}
	})
}

func TestSweep(t *testing.T) {
	l, now := newTestLimiter(Config{RequestsPerMinute: 60, Burst: 1, IdleTTL: time.Minute})
	l.limiterFor("198.51.100.1")
	*now = now.Add(2 * time.Minute)
	l.limiterFor("198.51.100.2")

	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.buckets, 1)
}
