package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attestor/internal/platform/upstream"
)

func TestClientLookup(t *testing.T) {
	t.Run("sends address and api key", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/farcaster/user/bulk-by-address", r.URL.Path)
			assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", r.URL.Query().Get("addresses"))
			assert.Equal(t, "secret", r.Header.Get("x-api-key"))
			_, _ = w.Write([]byte(`{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed": [{"fid": 42}]}`))
		}))
		defer srv.Close()

		c := NewClient(ClientConfig{BaseURL: srv.URL + "/", APIKey: "secret"})
		recs, err := c.Lookup(context.Background(), testWallet)

		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, uint64(42), recs[0].FID)
	})

	statuses := []struct {
		name      string
		status    int
		category  upstream.ErrorCategory
		retryable bool
	}{
		{"404 is not found", http.StatusNotFound, upstream.ErrorNotFound, false},
		{"401 is auth", http.StatusUnauthorized, upstream.ErrorAuthentication, false},
		{"429 is rate limited", http.StatusTooManyRequests, upstream.ErrorRateLimited, true},
		{"500 is outage", http.StatusInternalServerError, upstream.ErrorOutage, true},
		{"502 is outage", http.StatusBadGateway, upstream.ErrorOutage, true},
		{"418 is contract mismatch", http.StatusTeapot, upstream.ErrorContractMismatch, false},
	}
	for _, tt := range statuses {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewClient(ClientConfig{BaseURL: srv.URL}).Lookup(context.Background(), testWallet)
			require.Error(t, err)
			assert.Equal(t, tt.category, upstream.CategoryOf(err))
			assert.Equal(t, tt.retryable, upstream.IsRetryable(err))
		})
	}

	t.Run("timeout is retryable", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}).Lookup(context.Background(), testWallet)
		require.Error(t, err)
		assert.Equal(t, upstream.ErrorTimeout, upstream.CategoryOf(err))
		assert.True(t, upstream.IsRetryable(err))
	})

	t.Run("connection refused is outage", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewClient(ClientConfig{BaseURL: url}).Lookup(context.Background(), testWallet)
		require.Error(t, err)
		assert.Equal(t, upstream.ErrorOutage, upstream.CategoryOf(err))
	})
}
