package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/platform/upstream"
)

// maxResponseBytes bounds directory responses; a user object is a few KiB.
const maxResponseBytes = 1 << 20

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the directory client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

// Client queries the identity directory's bulk-by-address endpoint.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  HTTPDoer
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  doer,
	}
}

// Lookup returns the identities verified for wallet, in directory order.
// Failures are *upstream.Error values; a 404 is ErrorNotFound.
func (c *Client) Lookup(ctx context.Context, wallet common.Address) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("addresses", strings.ToLower(wallet.Hex()))
	endpoint := fmt.Sprintf("%s/v2/farcaster/user/bulk-by-address?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, upstream.NewError(upstream.ErrorInternal, upstreamName, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, upstream.NewError(upstream.ErrorTimeout, upstreamName, "request timeout", err)
		}
		return nil, upstream.NewError(upstream.ErrorOutage, upstreamName, "failed to execute request", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, upstream.NewError(upstream.ErrorTimeout, upstreamName, "response read timeout", err)
		}
		return nil, upstream.NewError(upstream.ErrorOutage, upstreamName, "failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, upstream.NewError(upstream.ErrorNotFound, upstreamName, "no user for address", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, upstream.NewError(upstream.ErrorAuthentication, upstreamName,
			fmt.Sprintf("authentication failed: %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, upstream.NewError(upstream.ErrorRateLimited, upstreamName, "rate limit exceeded", nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, upstream.NewError(upstream.ErrorOutage, upstreamName,
			fmt.Sprintf("provider unavailable: %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, upstream.NewError(upstream.ErrorContractMismatch, upstreamName,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	return Decode(body, wallet)
}
