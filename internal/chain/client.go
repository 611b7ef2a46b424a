// Package chain is the JSON-RPC read layer: head lookups, Revoked log
// queries, receipt checks and log subscriptions, with per-call timeouts and
// bounded retries for transient node failures.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"attestor/internal/platform/upstream"
)

const upstreamName = "json-rpc"

// Backend is the subset of *ethclient.Client the service reads through.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Dial connects to an http(s) or ws(s) JSON-RPC endpoint.
func Dial(ctx context.Context, rawURL string) (*ethclient.Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("rpc url is empty")
	}
	c, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return c, nil
}

// Client wraps a Backend with timeouts, retries and error classification.
type Client struct {
	backend     Backend
	callTimeout time.Duration
	backoff     upstream.Backoff
	logger      *slog.Logger
	metrics     *Metrics
}

type Option func(*Client)

func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

func WithBackoff(b upstream.Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(backend Backend, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		backend:     backend,
		callTimeout: 15 * time.Second,
		backoff:     upstream.DefaultBackoff(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Head returns the latest block number.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	return call(ctx, c, "eth_blockNumber", func(ctx context.Context) (uint64, error) {
		return c.backend.BlockNumber(ctx)
	})
}

// Ping reports whether the node answers a head query. Used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	_, err := c.backend.BlockNumber(ctx)
	return classify(err)
}

// RevokedLogs returns the decoded Revoked events matching f. Logs that fail
// to decode are skipped and logged; they never fail the query.
func (c *Client) RevokedLogs(ctx context.Context, f RevokedFilter) ([]RevokedEvent, error) {
	if f.ToBlock < f.FromBlock {
		return nil, nil
	}
	logs, err := call(ctx, c, "eth_getLogs", func(ctx context.Context) ([]types.Log, error) {
		return c.backend.FilterLogs(ctx, f.Query())
	})
	if err != nil {
		return nil, err
	}

	events := make([]RevokedEvent, 0, len(logs))
	for _, l := range logs {
		ev, err := DecodeRevoked(l)
		if err != nil {
			c.logger.DebugContext(ctx, "skipping log",
				"tx_hash", l.TxHash.Hex(),
				"block", l.BlockNumber,
				"error", err,
			)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// ReceiptSucceeded reports whether txHash was mined with status 1. An unknown
// transaction is reported as not succeeded rather than as an error.
func (c *Client) ReceiptSucceeded(ctx context.Context, txHash common.Hash) (bool, error) {
	receipt, err := call(ctx, c, "eth_getTransactionReceipt", func(ctx context.Context) (*types.Receipt, error) {
		return c.backend.TransactionReceipt(ctx, txHash)
	})
	if err != nil {
		if upstream.CategoryOf(err) == upstream.ErrorNotFound {
			return false, nil
		}
		return false, err
	}
	return receipt.Status == types.ReceiptStatusSuccessful, nil
}

// SubscribeRevoked streams Revoked logs of contract into ch. Only websocket
// and IPC transports support subscriptions.
func (c *Client) SubscribeRevoked(ctx context.Context, contract common.Address, ch chan<- types.Log) (ethereum.Subscription, error) {
	sub, err := c.backend.SubscribeFilterLogs(ctx, SubscriptionQuery(contract), ch)
	if err != nil {
		c.metrics.call("eth_subscribe", outcomeFor(err))
		return nil, classify(err)
	}
	c.metrics.call("eth_subscribe", outcomeOK)
	return sub, nil
}

func call[T any](ctx context.Context, c *Client, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := upstream.Retry(ctx, c.backoff, func(ctx context.Context) (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		v, err := fn(callCtx)
		return v, classify(err)
	}, func(attempt int, lastErr error) {
		c.metrics.retried(method)
		c.logger.WarnContext(ctx, "rpc call retry",
			"method", method,
			"attempt", attempt+1,
			"error", lastErr,
		)
	})
	if err != nil {
		c.metrics.call(method, outcomeFor(err))
		return v, err
	}
	c.metrics.call(method, outcomeOK)
	return v, nil
}

// classify maps transport and node errors onto the upstream taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ue *upstream.Error
	if errors.As(err, &ue) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return upstream.NewError(upstream.ErrorTimeout, upstreamName, "call timed out", err)
	case errors.Is(err, context.Canceled):
		return upstream.NewError(upstream.ErrorInternal, upstreamName, "call canceled", err)
	case errors.Is(err, ethereum.NotFound):
		return upstream.NewError(upstream.ErrorNotFound, upstreamName, "not found", err)
	case errors.Is(err, rpc.ErrClientQuit):
		return upstream.NewError(upstream.ErrorInternal, upstreamName, "client closed", err)
	case errors.Is(err, rpc.ErrNotificationsUnsupported):
		return upstream.NewError(upstream.ErrorContractMismatch, upstreamName, "transport does not support subscriptions", err)
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 429:
			return upstream.NewError(upstream.ErrorRateLimited, upstreamName, "rate limited", err)
		case httpErr.StatusCode >= 500:
			return upstream.NewError(upstream.ErrorOutage, upstreamName, httpErr.Status, err)
		case httpErr.StatusCode == 401 || httpErr.StatusCode == 403:
			return upstream.NewError(upstream.ErrorAuthentication, upstreamName, "rejected credentials", err)
		default:
			return upstream.NewError(upstream.ErrorContractMismatch, upstreamName, httpErr.Status, err)
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		// -32005 is the de facto "limit exceeded" code across providers.
		if rpcErr.ErrorCode() == -32005 || strings.Contains(strings.ToLower(rpcErr.Error()), "rate limit") {
			return upstream.NewError(upstream.ErrorRateLimited, upstreamName, "node rate limit", err)
		}
		return upstream.NewError(upstream.ErrorBadData, upstreamName, "node rejected request", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return upstream.NewError(upstream.ErrorTimeout, upstreamName, "network timeout", err)
	}

	// Connection resets, refused dials and truncated bodies.
	return upstream.NewError(upstream.ErrorOutage, upstreamName, "transport failure", err)
}
