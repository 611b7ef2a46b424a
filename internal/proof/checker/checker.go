// Package checker answers "did this wallet emit Revoked(wallet, token,
// spender)?" using the cheapest tier that can say yes: the local store, a
// short scan of recent blocks, then a direct log query against the node.
package checker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/chain"
	"attestor/internal/indexer"
	"attestor/internal/proof/models"
	"attestor/internal/sentinel"
	"attestor/internal/tracer"
)

// Tiers, in the order they are consulted.
const (
	TierStore      = "store"
	TierRecentSync = "recent_sync"
	TierLive       = "live"
	TierNone       = "none"
)

type Store interface {
	Find(ctx context.Context, key models.Key) (*models.Record, error)
	PutIfAbsent(ctx context.Context, rec models.Record) (bool, error)
}

// Syncer is the on-demand side of the index maintainer.
type Syncer interface {
	SyncRecent(ctx context.Context, n uint64) (*indexer.Result, error)
}

// LiveReader queries the node directly.
type LiveReader interface {
	Head(ctx context.Context) (uint64, error)
	RevokedLogs(ctx context.Context, f chain.RevokedFilter) ([]chain.RevokedEvent, error)
	ReceiptSucceeded(ctx context.Context, txHash common.Hash) (bool, error)
}

type Config struct {
	Contract        common.Address
	DeploymentBlock uint64
	RecentBlocks    uint64
	ConfirmReceipts bool
}

// Result tells which tier found the proof; Tier is TierNone when nothing did.
type Result struct {
	Found  bool
	Tier   string
	Record *models.Record
}

type Option func(*Checker)

// WithSyncer enables the recent-blocks tier. Without it the checker goes
// straight from the store to the live query.
func WithSyncer(s Syncer) Option {
	return func(c *Checker) { c.syncer = s }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Checker) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

type Checker struct {
	cfg     Config
	store   Store
	live    LiveReader
	syncer  Syncer
	logger  *slog.Logger
	metrics *Metrics
	tracer  tracer.Tracer
	now     func() time.Time
}

func New(cfg Config, st Store, live LiveReader, logger *slog.Logger, opts ...Option) *Checker {
	c := &Checker{
		cfg:    cfg,
		store:  st,
		live:   live,
		logger: logger,
		tracer: tracer.NewNoop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasProof reports whether a Revoked event exists for key. Chain failures
// degrade to false and are logged; only a canceled context is an error.
func (c *Checker) HasProof(ctx context.Context, key models.Key) (bool, error) {
	res, err := c.Check(ctx, key)
	if err != nil {
		return false, err
	}
	return res.Found, nil
}

// Check is HasProof with the deciding tier.
func (c *Checker) Check(ctx context.Context, key models.Key) (res Result, err error) {
	start := c.now()
	ctx, span := c.tracer.Start(ctx, tracer.SpanProof,
		tracer.String(tracer.AttrWallet, key.Wallet.Hex()),
		tracer.String(tracer.AttrToken, key.Token.Hex()),
		tracer.String(tracer.AttrSpender, key.Spender.Hex()),
	)
	defer func() {
		span.SetAttributes(tracer.String(tracer.AttrProofTier, res.Tier))
		span.End(err)
		c.metrics.observe(res.Tier, c.now().Sub(start).Seconds())
	}()

	if rec, ok := c.fromStore(ctx, key); ok {
		return Result{Found: true, Tier: TierStore, Record: rec}, nil
	}

	if c.syncer != nil {
		if rec, ok := c.afterRecentSync(ctx, key); ok {
			return Result{Found: true, Tier: TierRecentSync, Record: rec}, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{Tier: TierNone}, err
	}

	if rec, ok := c.liveQuery(ctx, key); ok {
		return Result{Found: true, Tier: TierLive, Record: rec}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{Tier: TierNone}, err
	}
	return Result{Tier: TierNone}, nil
}

func (c *Checker) fromStore(ctx context.Context, key models.Key) (*models.Record, bool) {
	rec, err := c.store.Find(ctx, key)
	if err == nil {
		return rec, true
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		c.logger.WarnContext(ctx, "proof store lookup failed", "key", key.String(), "error", err)
	}
	return nil, false
}

func (c *Checker) afterRecentSync(ctx context.Context, key models.Key) (*models.Record, bool) {
	_, err := c.syncer.SyncRecent(ctx, c.cfg.RecentBlocks)
	switch {
	case err == nil:
	case errors.Is(err, indexer.ErrSyncInFlight):
		// Do not wait behind a long catch-up; the live query is authoritative.
		return nil, false
	default:
		c.logger.WarnContext(ctx, "recent block sync failed", "error", err)
		// The scan may have stored events from chunks that completed.
	}
	return c.fromStore(ctx, key)
}

func (c *Checker) liveQuery(ctx context.Context, key models.Key) (rec *models.Record, ok bool) {
	var err error
	ctx, span := c.tracer.Start(ctx, tracer.SpanProofLive)
	defer func() {
		span.SetAttributes(tracer.Bool(tracer.AttrOutcome, ok))
		span.End(err)
	}()

	head, err := c.live.Head(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "live proof query degraded to no proof", "stage", "head", "error", err)
		return nil, false
	}
	if head < c.cfg.DeploymentBlock {
		return nil, false
	}

	wallet, token, spender := key.Wallet, key.Token, key.Spender
	events, err := c.live.RevokedLogs(ctx, chain.RevokedFilter{
		Contract:  c.cfg.Contract,
		FromBlock: c.cfg.DeploymentBlock,
		ToBlock:   head,
		Wallet:    &wallet,
		Token:     &token,
		Spender:   &spender,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "live proof query degraded to no proof", "stage", "logs", "error", err)
		return nil, false
	}

	for _, ev := range events {
		if ev.Wallet != wallet || ev.Token != token || ev.Spender != spender {
			continue
		}
		if c.cfg.ConfirmReceipts && !c.confirmed(ctx, ev) {
			continue
		}
		found := models.FromEvent(ev, c.now())
		if _, err := c.store.PutIfAbsent(ctx, found); err != nil {
			c.logger.WarnContext(ctx, "proof backfill failed", "key", key.String(), "error", err)
		}
		return &found, true
	}
	return nil, false
}

// confirmed reports whether the event's transaction succeeded. A receipt
// that cannot be fetched counts as unconfirmed.
func (c *Checker) confirmed(ctx context.Context, ev chain.RevokedEvent) bool {
	ok, err := c.live.ReceiptSucceeded(ctx, ev.TxHash)
	if err != nil {
		c.logger.WarnContext(ctx, "receipt confirmation failed", "tx_hash", ev.TxHash.Hex(), "error", err)
		return false
	}
	if !ok {
		c.logger.InfoContext(ctx, "ignoring event from failed transaction", "tx_hash", ev.TxHash.Hex())
	}
	return ok
}
