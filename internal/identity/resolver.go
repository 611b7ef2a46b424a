package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"attestor/internal/platform/upstream"
	"attestor/internal/tracer"
	"attestor/pkg/platform/circuit"
)

// Lookuper performs one directory round trip.
type Lookuper interface {
	Lookup(ctx context.Context, wallet common.Address) ([]Record, error)
}

// Resolver maps a wallet to a single identity. It owns the retry budget and
// the circuit breaker so callers see only three outcomes: a Record,
// ErrIdentityNotFound, or ErrResolutionUnavailable.
type Resolver struct {
	lookup  Lookuper
	breaker *circuit.Breaker
	backoff upstream.Backoff
	logger  *slog.Logger
	metrics *Metrics
	tracer  tracer.Tracer
}

type ResolverOption func(*Resolver)

func WithBackoff(b upstream.Backoff) ResolverOption {
	return func(r *Resolver) { r.backoff = b }
}

func WithBreaker(b *circuit.Breaker) ResolverOption {
	return func(r *Resolver) {
		if b != nil {
			r.breaker = b
		}
	}
}

func WithMetrics(m *Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

func WithTracer(t tracer.Tracer) ResolverOption {
	return func(r *Resolver) {
		if t != nil {
			r.tracer = t
		}
	}
}

func NewResolver(lookup Lookuper, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		lookup:  lookup,
		breaker: circuit.New("identity_directory"),
		backoff: upstream.DefaultBackoff(),
		logger:  logger,
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the identity for wallet. When the directory lists several
// identities for one address the first entry is used; that is a tie-break,
// not a guarantee the directory orders them meaningfully.
func (r *Resolver) Resolve(ctx context.Context, wallet common.Address) (rec *Record, err error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, tracer.SpanResolve, tracer.String(tracer.AttrWallet, wallet.Hex()))
	defer func() { span.End(err) }()

	if !r.breaker.Allow() {
		r.metrics.observe(OutcomeCircuitOpen, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: circuit %s open", ErrResolutionUnavailable, r.breaker.Name())
	}

	records, err := upstream.Retry(ctx, r.backoff, func(ctx context.Context) ([]Record, error) {
		return r.lookup.Lookup(ctx, wallet)
	}, func(attempt int, lastErr error) {
		r.metrics.retried()
		r.logger.WarnContext(ctx, "identity lookup retry",
			"attempt", attempt+1,
			"error", lastErr,
		)
	})
	if err != nil {
		if upstream.CategoryOf(err) == upstream.ErrorNotFound {
			r.breaker.RecordSuccess()
			r.metrics.observe(OutcomeNotFound, time.Since(start).Seconds())
			return nil, ErrIdentityNotFound
		}
		// The caller gave up; that says nothing about the directory's health.
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.metrics.observe(OutcomeCanceled, time.Since(start).Seconds())
			return nil, fmt.Errorf("%w: %w", ErrResolutionUnavailable, ctxErr)
		}
		if change := r.breaker.RecordFailure(); change.Opened {
			r.logger.ErrorContext(ctx, "circuit breaker opened",
				"circuit", r.breaker.Name(),
				"error", err,
			)
		}
		r.metrics.observe(OutcomeUnavailable, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %w", ErrResolutionUnavailable, err)
	}

	if change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "circuit breaker closed", "circuit", r.breaker.Name())
	}

	if len(records) == 0 {
		r.metrics.observe(OutcomeNotFound, time.Since(start).Seconds())
		return nil, ErrIdentityNotFound
	}
	if len(records) > 1 {
		fids := make([]uint64, 0, len(records))
		for _, c := range records {
			fids = append(fids, c.FID)
		}
		r.logger.InfoContext(ctx, "multiple identities for wallet, using first",
			"wallet", wallet.Hex(),
			"candidates", fids,
		)
	}

	r.metrics.observe(OutcomeFound, time.Since(start).Seconds())
	picked := records[0]
	picked.Wallet = wallet
	span.SetAttributes(tracer.Attribute{Key: tracer.AttrFID, Value: picked.FID})
	return &picked, nil
}
