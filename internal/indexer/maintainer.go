// Package indexer keeps the local proof store in step with the chain. It
// owns the sync cursor: a startup catch-up, a periodic catch-up, short
// on-demand scans of recent blocks and an optional live log subscription all
// write through the same store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"attestor/internal/chain"
	"attestor/internal/platform/upstream"
	"attestor/internal/proof/models"
	"attestor/internal/proof/store"
	"attestor/internal/tracer"
)

// ErrSyncInFlight is returned when a pass is already running. Callers that
// cannot wait treat it as "skip this tier".
var ErrSyncInFlight = errors.New("sync pass already in flight")

// ChainReader is the read side of internal/chain the maintainer needs.
type ChainReader interface {
	Head(ctx context.Context) (uint64, error)
	RevokedLogs(ctx context.Context, f chain.RevokedFilter) ([]chain.RevokedEvent, error)
	SubscribeRevoked(ctx context.Context, contract common.Address, ch chan<- types.Log) (ethereum.Subscription, error)
}

type Config struct {
	Contract         common.Address
	DeploymentBlock  uint64
	Interval         time.Duration
	RecentBlocks     uint64
	ChunkSize        uint64
	CatchUpChunkSize uint64
	ChunkDelay       time.Duration
	Subscribe        bool
	ResubscribeMin   time.Duration
	ResubscribeMax   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.RecentBlocks == 0 {
		c.RecentBlocks = 200
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 10
	}
	if c.CatchUpChunkSize == 0 {
		c.CatchUpChunkSize = 500
	}
	if c.ResubscribeMin <= 0 {
		c.ResubscribeMin = 2 * time.Second
	}
	if c.ResubscribeMax < c.ResubscribeMin {
		c.ResubscribeMax = time.Minute
	}
	return c
}

// State is a snapshot of the maintainer for the admin endpoints.
type State struct {
	LastSyncedBlock uint64    `json:"last_synced_block"`
	Syncing         bool      `json:"syncing"`
	LastRunAt       time.Time `json:"last_run_at,omitzero"`
	LastError       string    `json:"last_error,omitempty"`
}

// Result describes one completed (or partially completed) pass.
type Result struct {
	Reason    string
	FromBlock uint64
	ToBlock   uint64
	Chunks    int
	Events    int
	Inserted  int
	Cursor    uint64
}

type Option func(*Maintainer)

func WithMetrics(m *Metrics) Option {
	return func(mt *Maintainer) { mt.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(mt *Maintainer) {
		if t != nil {
			mt.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(mt *Maintainer) {
		if now != nil {
			mt.now = now
		}
	}
}

type Maintainer struct {
	cfg     Config
	chain   ChainReader
	store   store.Store
	logger  *slog.Logger
	metrics *Metrics
	tracer  tracer.Tracer
	now     func() time.Time

	syncing atomic.Bool
	group   singleflight.Group

	mu        sync.Mutex
	baseCtx   context.Context
	lastRunAt time.Time
	lastErr   error
}

func New(cfg Config, reader ChainReader, st store.Store, logger *slog.Logger, opts ...Option) *Maintainer {
	m := &Maintainer{
		cfg:     cfg.withDefaults(),
		chain:   reader,
		store:   st,
		logger:  logger,
		tracer:  tracer.NewNoop(),
		now:     time.Now,
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports the cursor and whether a pass is running.
func (m *Maintainer) State(ctx context.Context) (State, error) {
	cur, err := m.store.LoadCursor(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load cursor: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := State{
		LastSyncedBlock: cur.LastSyncedBlock,
		Syncing:         m.syncing.Load(),
		LastRunAt:       m.lastRunAt,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s, nil
}

// Syncing reports whether a pass is running right now.
func (m *Maintainer) Syncing() bool {
	return m.syncing.Load()
}

// Start runs the startup catch-up, the optional subscription and the
// periodic loop until ctx is canceled.
func (m *Maintainer) Start(ctx context.Context) error {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()

	if _, err := m.Startup(ctx); err != nil && !errors.Is(err, context.Canceled) {
		// The periodic loop retries; a cold node must not keep the service down.
		m.logger.WarnContext(ctx, "startup sync incomplete", "error", err)
	}

	var wg sync.WaitGroup
	if m.cfg.Subscribe {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Subscribe(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.ErrorContext(ctx, "log subscription stopped", "error", err)
			}
		}()
	}

	err := m.RunPeriodic(ctx)
	wg.Wait()
	return err
}

// Startup catches up from max(cursor, deployment block) to head.
func (m *Maintainer) Startup(ctx context.Context) (*Result, error) {
	return m.CatchUp(ctx, ReasonStartup)
}

// RunPeriodic catches up on every tick until ctx is canceled. Ticks that find
// a pass already running are skipped.
func (m *Maintainer) RunPeriodic(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, err := m.CatchUp(ctx, ReasonPeriodic)
			switch {
			case err == nil, errors.Is(err, ErrSyncInFlight):
			case errors.Is(err, context.Canceled):
			default:
				m.logger.ErrorContext(ctx, "periodic sync failed", "error", err)
			}
		case <-ctx.Done():
			m.logger.Info("index maintainer stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// TriggerCatchUp starts a background catch-up bound to the maintainer's run
// context. It reports false when a pass is already running.
func (m *Maintainer) TriggerCatchUp(reason string) bool {
	if m.syncing.Load() {
		m.metrics.skipped(reason)
		return false
	}
	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()

	go func() {
		if _, err := m.CatchUp(ctx, reason); err != nil &&
			!errors.Is(err, ErrSyncInFlight) && !errors.Is(err, context.Canceled) {
			m.logger.ErrorContext(ctx, "triggered sync failed", "reason", reason, "error", err)
		}
	}()
	return true
}

// CatchUp scans from the block after the cursor to head, advancing the
// cursor chunk by chunk. Concurrent callers share one pass.
func (m *Maintainer) CatchUp(ctx context.Context, reason string) (*Result, error) {
	v, err, _ := m.group.Do("catch-up", func() (any, error) {
		if !m.syncing.CompareAndSwap(false, true) {
			return nil, ErrSyncInFlight
		}
		defer m.syncing.Store(false)
		return m.catchUp(ctx, reason)
	})
	if errors.Is(err, ErrSyncInFlight) {
		m.metrics.skipped(reason)
	}
	res, _ := v.(*Result)
	return res, err
}

func (m *Maintainer) catchUp(ctx context.Context, reason string) (res *Result, err error) {
	start := m.now()
	defer func() { m.finish(ctx, reason, start, res, err) }()

	head, err := m.chain.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}
	cur, err := m.store.LoadCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	from := m.nextBlock(cur)
	res = &Result{Reason: reason, FromBlock: from, ToBlock: head, Cursor: cur.LastSyncedBlock}
	if from > head {
		return res, nil
	}
	return res, m.scan(ctx, res, m.cfg.CatchUpChunkSize, true)
}

// SyncRecent scans the last n blocks (the configured default when n is 0).
// It returns ErrSyncInFlight immediately rather than waiting for a running
// pass. The cursor only moves when the scanned range joins onto it.
func (m *Maintainer) SyncRecent(ctx context.Context, n uint64) (res *Result, err error) {
	if !m.syncing.CompareAndSwap(false, true) {
		m.metrics.skipped(ReasonOnDemand)
		return nil, ErrSyncInFlight
	}
	defer m.syncing.Store(false)

	start := m.now()
	defer func() { m.finish(ctx, ReasonOnDemand, start, res, err) }()

	if n == 0 {
		n = m.cfg.RecentBlocks
	}
	head, err := m.chain.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}
	cur, err := m.store.LoadCursor(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	var from uint64
	if head+1 > n {
		from = head + 1 - n
	}
	from = max(from, m.cfg.DeploymentBlock)
	res = &Result{Reason: ReasonOnDemand, FromBlock: from, ToBlock: head, Cursor: cur.LastSyncedBlock}
	if from > head {
		return res, nil
	}
	joins := from <= m.nextBlock(cur)
	return res, m.scan(ctx, res, m.cfg.ChunkSize, joins)
}

// nextBlock is the first block not yet covered by the cursor.
func (m *Maintainer) nextBlock(cur models.Cursor) uint64 {
	if cur.UpdatedAt.IsZero() && cur.LastSyncedBlock == 0 {
		return m.cfg.DeploymentBlock
	}
	return max(cur.LastSyncedBlock+1, m.cfg.DeploymentBlock)
}

// scan walks res.FromBlock..res.ToBlock in chunks. A chunk that still fails
// after the client's retries ends the pass; the cursor stays at the last
// chunk that completed.
func (m *Maintainer) scan(ctx context.Context, res *Result, chunkSize uint64, advance bool) (err error) {
	ctx, span := m.tracer.Start(ctx, tracer.SpanSync,
		tracer.String(tracer.AttrSyncReason, res.Reason),
		tracer.Attribute{Key: tracer.AttrFromBlock, Value: res.FromBlock},
		tracer.Attribute{Key: tracer.AttrToBlock, Value: res.ToBlock},
	)
	defer func() { span.End(err) }()

	pacer := rate.NewLimiter(rate.Inf, 1)
	if m.cfg.ChunkDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(m.cfg.ChunkDelay), 1)
	}

	for lo := res.FromBlock; lo <= res.ToBlock; {
		hi := res.ToBlock
		if res.ToBlock-lo >= chunkSize {
			hi = lo + chunkSize - 1
		}
		if err := pacer.Wait(ctx); err != nil {
			return err
		}

		events, err := m.chain.RevokedLogs(ctx, chain.RevokedFilter{
			Contract:  m.cfg.Contract,
			FromBlock: lo,
			ToBlock:   hi,
		})
		if err != nil {
			m.metrics.chunk(false, 0)
			return fmt.Errorf("scan blocks %d-%d: %w", lo, hi, err)
		}
		for _, ev := range events {
			inserted, err := m.store.PutIfAbsent(ctx, models.FromEvent(ev, m.now()))
			if err != nil {
				m.metrics.chunk(false, 0)
				return fmt.Errorf("store proof from block %d: %w", ev.BlockNumber, err)
			}
			m.metrics.event("scan", inserted)
			res.Events++
			if inserted {
				res.Inserted++
			}
		}
		m.metrics.chunk(true, hi-lo+1)
		res.Chunks++

		if advance {
			c, err := m.store.AdvanceCursor(ctx, hi)
			if err != nil {
				return fmt.Errorf("advance cursor to %d: %w", hi, err)
			}
			res.Cursor = c.LastSyncedBlock
			m.metrics.cursor(c.LastSyncedBlock)
		}

		if hi == res.ToBlock {
			break
		}
		lo = hi + 1
	}
	return nil
}

func (m *Maintainer) finish(ctx context.Context, reason string, start time.Time, res *Result, err error) {
	elapsed := m.now().Sub(start)

	m.mu.Lock()
	m.lastRunAt = start
	m.lastErr = err
	m.mu.Unlock()

	if err != nil {
		m.metrics.pass(reason, "error", elapsed.Seconds())
		return
	}
	m.metrics.pass(reason, "ok", elapsed.Seconds())
	if res != nil && res.Chunks > 0 {
		m.logger.InfoContext(ctx, "sync pass completed",
			"reason", reason,
			"from_block", res.FromBlock,
			"to_block", res.ToBlock,
			"chunks", res.Chunks,
			"events", res.Events,
			"inserted", res.Inserted,
			"cursor", res.Cursor,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

// Subscribe streams Revoked logs straight into the store and resubscribes
// with capped exponential backoff when the stream drops. It returns when ctx
// ends or when the transport cannot subscribe at all.
func (m *Maintainer) Subscribe(ctx context.Context) error {
	delay := m.cfg.ResubscribeMin
	for {
		established, err := m.subscribeOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if upstream.CategoryOf(err) == upstream.ErrorContractMismatch {
			return fmt.Errorf("log subscription unavailable: %w", err)
		}
		if established {
			delay = m.cfg.ResubscribeMin
		}
		m.logger.WarnContext(ctx, "log subscription interrupted",
			"error", err,
			"retry_in_ms", delay.Milliseconds(),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, m.cfg.ResubscribeMax)
	}
}

func (m *Maintainer) subscribeOnce(ctx context.Context) (bool, error) {
	logs := make(chan types.Log, 64)
	sub, err := m.chain.SubscribeRevoked(ctx, m.cfg.Contract, logs)
	if err != nil {
		return false, err
	}
	defer sub.Unsubscribe()

	// Anything emitted while disconnected is picked up by a catch-up pass.
	m.TriggerCatchUp(ReasonResubscribe)

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return true, err
		case l := <-logs:
			m.handleLog(ctx, l)
		}
	}
}

func (m *Maintainer) handleLog(ctx context.Context, l types.Log) {
	if l.Address != m.cfg.Contract {
		return
	}
	ev, err := chain.DecodeRevoked(l)
	if err != nil {
		m.logger.DebugContext(ctx, "ignoring subscribed log", "tx_hash", l.TxHash.Hex(), "error", err)
		return
	}
	inserted, err := m.store.PutIfAbsent(ctx, models.FromEvent(ev, m.now()))
	if err != nil {
		m.logger.ErrorContext(ctx, "store subscribed proof", "tx_hash", l.TxHash.Hex(), "error", err)
		return
	}
	m.metrics.event("subscription", inserted)
}
